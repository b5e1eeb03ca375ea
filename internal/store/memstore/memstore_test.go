package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, email, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), &model.User{
		FirstName: "Ada", LastName: "Lovelace", Username: username, Email: email,
		PasswordHash: "x", Role: types.RoleUser, Status: types.UserStatusPending,
	})
	require.NoError(t, err)
	return id
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	s := New()
	seedUser(t, s, "ada@example.com", "ada")

	_, err := s.CreateUser(context.Background(), &model.User{Email: "ada@example.com", Username: "other"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.CreateUser(context.Background(), &model.User{Email: "other@example.com", Username: "ada"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := seedUser(t, s, "ada@example.com", "ada")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Querier) error {
		require.NoError(t, tx.InsertAccountIfAbsent(ctx, &model.TradingAccount{
			UserID: userID, AccountNumber: "SXR1", AccountType: types.AccountTypeDemo,
			Balance: decimal.NewFromInt(10000), Currency: "USD",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.AccountByType(ctx, userID, types.AccountTypeDemo)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, s.RowCounts()["trading_accounts"])
}

func TestWithTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := seedUser(t, s, "ada@example.com", "ada")

	err := s.WithTx(ctx, func(tx store.Querier) error {
		a := &model.TradingAccount{UserID: userID, AccountNumber: "SXR1", AccountType: types.AccountTypeDemo,
			Balance: decimal.NewFromInt(100), Currency: "USD"}
		if err := tx.InsertAccountIfAbsent(ctx, a); err != nil {
			return err
		}
		return tx.AddBalance(ctx, a.ID, decimal.NewFromInt(-40))
	})
	require.NoError(t, err)

	a, err := s.AccountByType(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(60)))
}

func TestInsertAccountIfAbsentIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := seedUser(t, s, "ada@example.com", "ada")

	for _, number := range []string{"SXR1", "SXR2"} {
		require.NoError(t, s.InsertAccountIfAbsent(ctx, &model.TradingAccount{
			UserID: userID, AccountNumber: number, AccountType: types.AccountTypeLive, Currency: "USD",
		}))
	}
	accounts, err := s.AccountsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "SXR1", accounts[0].AccountNumber)
}

func TestListUsersLeftJoinsAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	withAccount := seedUser(t, s, "a@example.com", "a")
	seedUser(t, s, "b@example.com", "b")
	require.NoError(t, s.InsertAccountIfAbsent(ctx, &model.TradingAccount{
		UserID: withAccount, AccountNumber: "SXR1", AccountType: types.AccountTypeDemo, Currency: "USD",
	}))

	items, err := s.ListUsers(ctx, store.Page{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.ID == withAccount {
			require.NotNil(t, it.AccountNumber)
			assert.Equal(t, "SXR1", *it.AccountNumber)
		} else {
			assert.Nil(t, it.AccountID)
			assert.Nil(t, it.Balance)
		}
	}
}

func TestRecordLoginFailureCountsUnknownEmails(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seedUser(t, s, "ada@example.com", "ada")

	require.NoError(t, s.RecordLoginFailure(ctx, "ada@example.com", s.clock()))
	require.NoError(t, s.RecordLoginFailure(ctx, "ghost@example.com", s.clock()))
	require.NoError(t, s.RecordLoginFailure(ctx, "ghost@example.com", s.clock()))

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, u.FailedLogins)
	assert.Equal(t, 2, s.LoginFailures("ghost@example.com"))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, paginate(items, store.Page{Limit: 2, Offset: 2}))
	assert.Empty(t, paginate(items, store.Page{Limit: 2, Offset: 10}))
	assert.Len(t, paginate(items, store.Page{}), 5)
}

func TestHistoryBreaksTimestampTies(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })
	userID := seedUser(t, s, "ada@example.com", "ada")
	require.NoError(t, s.InsertAccountIfAbsent(ctx, &model.TradingAccount{
		UserID: userID, AccountNumber: "SXR1", AccountType: types.AccountTypeDemo,
		Balance: decimal.NewFromInt(10000), Currency: "USD",
	}))
	acct, err := s.AccountByType(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := s.InsertTrade(ctx, &model.Trade{UserID: userID, AccountID: acct.ID, Asset: "BTC",
			Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1), TotalAmount: decimal.NewFromInt(1),
			TradeType: types.TradeTypeBuy, Status: types.StatusCompleted})
		require.NoError(t, err)
		_, err = s.InsertDeposit(ctx, &model.Deposit{UserID: userID, AccountID: acct.ID, Amount: decimal.NewFromInt(5),
			Currency: "USD", PaymentMethod: "card", ReferenceNumber: fmt.Sprintf("DEP-%d", i), Status: types.StatusPending})
		require.NoError(t, err)
	}

	var seen []string
	for offset := 0; offset < 4; offset++ {
		page, err := s.HistoryByUser(ctx, userID, store.Page{Limit: 1, Offset: offset})
		require.NoError(t, err)
		require.Len(t, page, 1)
		seen = append(seen, fmt.Sprintf("%s#%d", page[0].Type, page[0].ID))
	}
	assert.Equal(t, []string{"deposit#2", "deposit#1", "trade#2", "trade#1"}, seen)
}
