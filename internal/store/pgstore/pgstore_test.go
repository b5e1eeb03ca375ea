package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(s.Close)
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestDepositLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	u := &model.User{
		FirstName: "Pg", LastName: "Test", Username: "pg_" + suffix, Email: fmt.Sprintf("pg_%s@example.com", suffix),
		PasswordHash: "x", Role: types.RoleUser, Status: types.UserStatusPending,
	}
	userID, err := s.CreateUser(ctx, u)
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, &model.User{FirstName: "x", LastName: "y", Username: "pg_" + suffix,
		Email: "other_" + suffix + "@example.com", PasswordHash: "x", Role: types.RoleUser, Status: types.UserStatusPending})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	acct := &model.TradingAccount{UserID: userID, AccountNumber: "SXRPG" + suffix, AccountType: types.AccountTypeDemo,
		Balance: decimal.NewFromInt(10000), Currency: "USD"}
	require.NoError(t, s.InsertAccountIfAbsent(ctx, acct))
	require.NoError(t, s.InsertAccountIfAbsent(ctx, acct))
	accounts, err := s.AccountsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	d := &model.Deposit{UserID: userID, AccountID: accounts[0].ID, Amount: decimal.NewFromInt(2000), Currency: "USD",
		PaymentMethod: "card", ReferenceNumber: "DEP-" + uuid.NewString(), Status: types.StatusPending}
	depositID, err := s.InsertDeposit(ctx, d)
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Querier) error {
		locked, err := tx.LockDeposit(ctx, depositID)
		if err != nil {
			return err
		}
		if err := tx.SetDepositStatus(ctx, locked.ID, types.StatusCompleted, time.Now()); err != nil {
			return err
		}
		return tx.AddBalance(ctx, locked.AccountID, locked.Amount)
	})
	require.NoError(t, err)

	a, err := s.AccountByType(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)
	assert.Equal(t, "12000", a.Balance.String())

	history, err := s.HistoryByUser(ctx, userID, store.Page{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "deposit", history[0].Type)

	_, err = s.UserByID(ctx, -1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
