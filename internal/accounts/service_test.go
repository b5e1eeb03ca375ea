package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"swiftx/internal/model"
	"swiftx/internal/store/memstore"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBinder struct {
	mu    sync.Mutex
	bound map[string]types.AccountType
}

func (f *fakeBinder) SetAccountType(_ context.Context, id string, t types.AccountType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		f.bound = map[string]types.AccountType{}
	}
	f.bound[id] = t
	return nil
}

func newTestService(t *testing.T) (*Service, *memstore.Store, *fakeBinder, int64) {
	t.Helper()
	st := memstore.New()
	id, err := st.CreateUser(context.Background(), &model.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Email:     "ada@example.com",
		Role:      types.RoleUser,
		Status:    types.UserStatusActive,
	})
	require.NoError(t, err)
	binder := &fakeBinder{}
	return NewService(st, binder, zap.NewNop()), st, binder, id
}

func TestStartingBalance(t *testing.T) {
	assert.True(t, StartingBalance(types.AccountTypeDemo).Equal(decimal.NewFromInt(10000)))
	assert.True(t, StartingBalance(types.AccountTypeLive).IsZero())
}

func TestNewAccountNumber(t *testing.T) {
	a, b := NewAccountNumber(), NewAccountNumber()
	assert.Len(t, a, 15)
	assert.True(t, strings.HasPrefix(a, "SXR"))
	assert.Equal(t, strings.ToUpper(a), a)
	assert.NotEqual(t, a, b)
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	svc, st, _, userID := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureAccount(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)
	second, err := svc.EnsureAccount(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.AccountNumber, second.AccountNumber)
	assert.True(t, first.Balance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 1, st.RowCounts()["trading_accounts"])

	live, err := svc.EnsureAccount(ctx, userID, types.AccountTypeLive)
	require.NoError(t, err)
	assert.True(t, live.Balance.IsZero())
	assert.Equal(t, "USD", live.Currency)
	assert.Equal(t, 2, st.RowCounts()["trading_accounts"])
}

func TestEnsureAccountConcurrentCallersShareOneRow(t *testing.T) {
	svc, st, _, userID := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := svc.EnsureAccount(ctx, userID, types.AccountTypeLive)
			if assert.NoError(t, err) {
				ids[i] = acc.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, st.RowCounts()["trading_accounts"])
}

func TestDashboardCreatesAccountOfSessionType(t *testing.T) {
	svc, _, _, userID := newTestService(t)

	view, err := svc.Dashboard(context.Background(), model.Session{ID: "s1", UserID: userID, AccountType: types.AccountTypeLive})
	require.NoError(t, err)
	assert.Equal(t, "Ada", view.User.FirstName)
	assert.Equal(t, "ada@example.com", view.User.Email)
	require.Len(t, view.Accounts, 1)
	assert.Equal(t, types.AccountTypeLive, view.Accounts[0].AccountType)
}

func TestSwitchAccountType(t *testing.T) {
	svc, st, binder, userID := newTestService(t)
	sess := model.Session{ID: "s1", UserID: userID, AccountType: types.AccountTypeDemo}

	_, err := svc.SwitchAccountType(context.Background(), sess, "gold")
	assert.ErrorIs(t, err, ErrInvalidAccountType)
	assert.Empty(t, binder.bound)

	got, err := svc.SwitchAccountType(context.Background(), sess, " LIVE ")
	require.NoError(t, err)
	assert.Equal(t, types.AccountTypeLive, got)
	assert.Equal(t, types.AccountTypeLive, binder.bound["s1"])

	accounts, err := st.AccountsByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, types.AccountTypeLive, accounts[0].AccountType)
}

func TestHandlerSwitchAccountType(t *testing.T) {
	svc, _, _, userID := newTestService(t)
	h := NewHandler(svc, zap.NewNop())
	sess := model.Session{ID: "s1", UserID: userID, AccountType: types.AccountTypeDemo}

	cases := []struct {
		name    string
		body    string
		status  int
		success bool
		message string
	}{
		{name: "invalid", body: `{"accountType":"gold"}`, status: http.StatusOK, message: "Invalid account type"},
		{name: "malformed", body: `{`, status: http.StatusBadRequest, message: "Invalid request body"},
		{name: "live", body: `{"accountType":"live"}`, status: http.StatusOK, success: true, message: "Switched to live account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/switch-account-type", strings.NewReader(tc.body))
			h.SwitchAccountType(rec, req, sess)

			require.Equal(t, tc.status, rec.Code)
			var out map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, tc.success, out["success"])
			assert.Equal(t, tc.message, out["message"])
		})
	}
}

func TestHandlerCurrentAccountTypeDefaultsToDemo(t *testing.T) {
	svc, _, _, userID := newTestService(t)
	h := NewHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.CurrentAccountType(rec, httptest.NewRequest(http.MethodGet, "/", nil), model.Session{UserID: userID})

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "demo", out["accountType"])
}
