package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
)

func (st *state) accountByType(userID int64, accountType types.AccountType) (model.TradingAccount, bool) {
	for _, a := range st.accounts {
		if a.UserID == userID && a.AccountType == accountType {
			return a, true
		}
	}
	return model.TradingAccount{}, false
}

func (q *queries) InsertAccountIfAbsent(_ context.Context, a *model.TradingAccount) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.users[a.UserID]; !ok {
		return fmt.Errorf("trading_accounts: user %d does not exist", a.UserID)
	}
	if _, ok := st.accountByType(a.UserID, a.AccountType); ok {
		return nil
	}
	for _, existing := range st.accounts {
		if existing.AccountNumber == a.AccountNumber {
			return nil
		}
	}
	a.ID = st.next("trading_accounts")
	a.CreatedAt = q.now()
	st.accounts[a.ID] = *a
	return nil
}

func (q *queries) AccountByType(_ context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error) {
	st, done := q.begin()
	defer done()
	a, ok := st.accountByType(userID, accountType)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (q *queries) AccountsByUser(_ context.Context, userID int64) ([]model.TradingAccount, error) {
	st, done := q.begin()
	defer done()
	out := make([]model.TradingAccount, 0, 2)
	for _, a := range st.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *queries) LatestAccountType(_ context.Context, userID int64) (types.AccountType, error) {
	st, done := q.begin()
	defer done()
	var latest model.TradingAccount
	for _, a := range st.accounts {
		if a.UserID == userID && a.ID > latest.ID {
			latest = a
		}
	}
	if latest.ID == 0 {
		return "", store.ErrNotFound
	}
	return latest.AccountType, nil
}

func (q *queries) LockAccount(_ context.Context, id int64) (*model.TradingAccount, error) {
	st, done := q.begin()
	defer done()
	a, ok := st.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (q *queries) LockAccountByType(ctx context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error) {
	return q.AccountByType(ctx, userID, accountType)
}

func (q *queries) AddBalance(_ context.Context, id int64, delta decimal.Decimal) error {
	st, done := q.begin()
	defer done()
	a, ok := st.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Balance = a.Balance.Add(delta).Round(2)
	st.accounts[id] = a
	return nil
}

func (q *queries) InsertTrade(_ context.Context, t *model.Trade) (int64, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.accounts[t.AccountID]; !ok {
		return 0, fmt.Errorf("trades: account %d does not exist", t.AccountID)
	}
	t.ID = st.next("trades")
	t.CreatedAt = q.now()
	st.trades[t.ID] = *t
	return t.ID, nil
}

func (q *queries) TradesByUser(_ context.Context, userID int64, page store.Page) ([]model.Trade, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedTrades(st, func(t model.Trade) bool { return t.UserID == userID }), page), nil
}

func (q *queries) ListTrades(_ context.Context, page store.Page) ([]model.Trade, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedTrades(st, func(model.Trade) bool { return true }), page), nil
}

func sortedTrades(st *state, keep func(model.Trade) bool) []model.Trade {
	out := make([]model.Trade, 0)
	for _, t := range st.trades {
		if keep(t) {
			out = append(out, t)
		}
	}
	newestFirst(out, func(t model.Trade) time.Time { return t.CreatedAt }, func(t model.Trade) int64 { return t.ID })
	return out
}
