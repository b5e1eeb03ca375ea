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

func (st *state) referenceTaken(ref string) bool {
	for _, d := range st.deposits {
		if d.ReferenceNumber == ref {
			return true
		}
	}
	for _, w := range st.withdrawals {
		if w.ReferenceNumber == ref {
			return true
		}
	}
	return false
}

func (q *queries) InsertDeposit(_ context.Context, d *model.Deposit) (int64, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.accounts[d.AccountID]; !ok {
		return 0, fmt.Errorf("deposits: account %d does not exist", d.AccountID)
	}
	if st.referenceTaken(d.ReferenceNumber) {
		return 0, fmt.Errorf("%w: deposits reference_number", store.ErrDuplicate)
	}
	d.ID = st.next("deposits")
	d.CreatedAt = q.now()
	d.UpdatedAt = d.CreatedAt
	st.deposits[d.ID] = *d
	return d.ID, nil
}

func (q *queries) LockDeposit(_ context.Context, id int64) (*model.Deposit, error) {
	st, done := q.begin()
	defer done()
	d, ok := st.deposits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (q *queries) SetDepositStatus(_ context.Context, id int64, status types.RequestStatus, at time.Time) error {
	st, done := q.begin()
	defer done()
	d, ok := st.deposits[id]
	if !ok {
		return store.ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = at
	st.deposits[id] = d
	return nil
}

func (q *queries) DepositsByUser(_ context.Context, userID int64, page store.Page) ([]model.Deposit, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedDeposits(st, func(d model.Deposit) bool { return d.UserID == userID }), page), nil
}

func (q *queries) ListDeposits(_ context.Context, status types.RequestStatus, page store.Page) ([]model.Deposit, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedDeposits(st, func(d model.Deposit) bool { return status == "" || d.Status == status }), page), nil
}

func sortedDeposits(st *state, keep func(model.Deposit) bool) []model.Deposit {
	out := make([]model.Deposit, 0)
	for _, d := range st.deposits {
		if keep(d) {
			out = append(out, d)
		}
	}
	newestFirst(out, func(d model.Deposit) time.Time { return d.CreatedAt }, func(d model.Deposit) int64 { return d.ID })
	return out
}

func (q *queries) InsertWithdrawal(_ context.Context, w *model.Withdrawal) (int64, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.accounts[w.AccountID]; !ok {
		return 0, fmt.Errorf("withdrawals: account %d does not exist", w.AccountID)
	}
	if st.referenceTaken(w.ReferenceNumber) {
		return 0, fmt.Errorf("%w: withdrawals reference_number", store.ErrDuplicate)
	}
	w.ID = st.next("withdrawals")
	w.CreatedAt = q.now()
	w.UpdatedAt = w.CreatedAt
	st.withdrawals[w.ID] = *w
	return w.ID, nil
}

func (q *queries) LockWithdrawal(_ context.Context, id int64) (*model.Withdrawal, error) {
	st, done := q.begin()
	defer done()
	w, ok := st.withdrawals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (q *queries) SetWithdrawalStatus(_ context.Context, id int64, status types.RequestStatus, at time.Time) error {
	st, done := q.begin()
	defer done()
	w, ok := st.withdrawals[id]
	if !ok {
		return store.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = at
	st.withdrawals[id] = w
	return nil
}

func (q *queries) WithdrawalsByUser(_ context.Context, userID int64, page store.Page) ([]model.Withdrawal, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedWithdrawals(st, func(w model.Withdrawal) bool { return w.UserID == userID }), page), nil
}

func (q *queries) ListWithdrawals(_ context.Context, status types.RequestStatus, page store.Page) ([]model.Withdrawal, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedWithdrawals(st, func(w model.Withdrawal) bool { return status == "" || w.Status == status }), page), nil
}

func sortedWithdrawals(st *state, keep func(model.Withdrawal) bool) []model.Withdrawal {
	out := make([]model.Withdrawal, 0)
	for _, w := range st.withdrawals {
		if keep(w) {
			out = append(out, w)
		}
	}
	newestFirst(out, func(w model.Withdrawal) time.Time { return w.CreatedAt }, func(w model.Withdrawal) int64 { return w.ID })
	return out
}

func (q *queries) HistoryByUser(_ context.Context, userID int64, page store.Page) ([]model.HistoryEntry, error) {
	st, done := q.begin()
	defer done()
	out := make([]model.HistoryEntry, 0)
	for _, t := range sortedTrades(st, func(t model.Trade) bool { return t.UserID == userID }) {
		out = append(out, model.HistoryEntry{Type: "trade", ID: t.ID, Description: t.Asset, Amount: t.TotalAmount,
			Currency: "USD", Status: string(t.Status), CreatedAt: t.CreatedAt})
	}
	for _, d := range sortedDeposits(st, func(d model.Deposit) bool { return d.UserID == userID }) {
		out = append(out, model.HistoryEntry{Type: "deposit", ID: d.ID, Description: d.PaymentMethod, Amount: d.Amount,
			Currency: d.Currency, Status: string(d.Status), CreatedAt: d.CreatedAt})
	}
	for _, w := range sortedWithdrawals(st, func(w model.Withdrawal) bool { return w.UserID == userID }) {
		out = append(out, model.HistoryEntry{Type: "withdrawal", ID: w.ID, Description: w.PaymentMethod, Amount: w.Amount,
			Currency: w.Currency, Status: string(w.Status), CreatedAt: w.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID > b.ID
	})
	return paginate(out, page), nil
}

func (q *queries) DashboardStats(_ context.Context) (model.DashboardStats, error) {
	st, done := q.begin()
	defer done()
	s := model.DashboardStats{TotalBalance: decimal.Zero}
	for _, u := range st.users {
		if u.Role == types.RoleUser {
			s.TotalUsers++
		}
	}
	for _, a := range st.accounts {
		s.TotalBalance = s.TotalBalance.Add(a.Balance)
	}
	s.TotalTrades = int64(len(st.trades))
	for _, d := range st.deposits {
		if d.Status == types.StatusPending {
			s.PendingDeposits++
		}
	}
	for _, w := range st.withdrawals {
		if w.Status == types.StatusPending {
			s.PendingWithdrawals++
		}
	}
	s.PendingActions = s.PendingDeposits + s.PendingWithdrawals
	return s, nil
}
