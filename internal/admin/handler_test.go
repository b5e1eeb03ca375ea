package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swiftx/internal/accounts"
	"swiftx/internal/ledger"
	"swiftx/internal/model"
	"swiftx/internal/sessions"
	"swiftx/internal/store/memstore"
	"swiftx/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type env struct {
	h      *Handler
	st     *memstore.Store
	ledger *ledger.Service
	sm     *sessions.Manager
	userID int64
	admin  model.Session
}

func newEnv(t *testing.T) env {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	userID, err := st.CreateUser(ctx, &model.User{
		FirstName: "Linus", Username: "linus", Email: "linus@example.com",
		Role: types.RoleUser, Status: types.UserStatusActive,
	})
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &model.User{Username: "lonely", Email: "lonely@example.com", Role: types.RoleUser})
	require.NoError(t, err)
	_, err = accounts.NewService(st, nil, zap.NewNop()).EnsureAccount(ctx, userID, types.AccountTypeDemo)
	require.NoError(t, err)

	led := ledger.NewService(st, ledger.Options{}, zap.NewNop())
	sm := sessions.NewManager(st, sessions.Options{Secret: []byte("k")}, zap.NewNop())
	return env{
		h:      NewHandler(NewService(st, zap.NewNop()), led, sm, zap.NewNop()),
		st:     st,
		ledger: led,
		sm:     sm,
		userID: userID,
		admin:  model.Session{ID: "admin", UserID: 99, IsAdmin: true},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func (e env) demoBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	acc, err := e.st.AccountByType(context.Background(), e.userID, types.AccountTypeDemo)
	require.NoError(t, err)
	return acc.Balance
}

func TestUsersIncludesUsersWithoutAccounts(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.h.Users(rec, httptest.NewRequest(http.MethodGet, "/", nil), e.admin)

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	users := out["users"].([]any)
	require.Len(t, users, 2)
	var withAccount, without int
	for _, u := range users {
		if u.(map[string]any)["account_number"] == nil {
			without++
		} else {
			withAccount++
		}
	}
	assert.Equal(t, 1, withAccount)
	assert.Equal(t, 1, without)
}

func TestDashboardStatsAreLive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.ledger.RequestDeposit(ctx, e.userID, types.AccountTypeDemo, ledger.FundingInput{Amount: decimal.NewFromInt(5), Method: "card"})
	require.NoError(t, err)
	_, err = e.ledger.RequestWithdrawal(ctx, e.userID, types.AccountTypeDemo, ledger.FundingInput{Amount: decimal.NewFromInt(5), Method: "bank"})
	require.NoError(t, err)

	stats, err := e.h.svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.PendingActions)
	assert.True(t, stats.TotalBalance.Equal(decimal.NewFromInt(10000)))

	_, err = e.ledger.AdjustBalance(ctx, e.userID, types.AccountTypeDemo, decimal.NewFromInt(500), "credit")
	require.NoError(t, err)
	stats, err = e.h.svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalBalance.Equal(decimal.NewFromInt(10500)))
}

func TestUpdateBalance(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name    string
		body    string
		success bool
		message string
		balance int64
	}{
		{"credit", `{"userId":1,"amount":250,"action":"credit"}`, true, "Balance credited successfully", 10250},
		{"debit", `{"userId":1,"amount":"50","action":"debit","accountType":"demo"}`, true, "Balance debited successfully", 10200},
		{"overdraw", `{"userId":1,"amount":999999,"action":"debit"}`, false, "Insufficient balance", 10200},
		{"no account", `{"userId":1,"amount":1,"action":"credit","accountType":"live"}`, false, "Account not found", 10200},
		{"bad action", `{"userId":1,"amount":1,"action":"nuke"}`, false, "Invalid action", 10200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.h.UpdateBalance(rec, post(tc.body), e.admin)
			out := decode(t, rec)
			assert.Equal(t, tc.success, out["success"])
			assert.Equal(t, tc.message, out["message"])
			assert.True(t, e.demoBalance(t).Equal(decimal.NewFromInt(tc.balance)))
		})
	}
}

func TestApproveDepositTwiceCreditsOnce(t *testing.T) {
	e := newEnv(t)
	dep, err := e.ledger.RequestDeposit(context.Background(), e.userID, types.AccountTypeDemo, ledger.FundingInput{Amount: decimal.NewFromInt(2000), Method: "card"})
	require.NoError(t, err)

	approve := e.h.DepositStatusTo(types.StatusCompleted)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		approve(rec, withID(post(""), "1"), e.admin)
		out := decode(t, rec)
		assert.Equal(t, true, out["success"])
		assert.Equal(t, "Deposit marked as completed", out["message"])
	}
	assert.True(t, e.demoBalance(t).Equal(decimal.NewFromInt(12000)))

	rec := httptest.NewRecorder()
	e.h.DepositStatusTo(types.StatusFailed)(rec, withID(post(""), "1"), e.admin)
	assert.Equal(t, "Request has already been processed", decode(t, rec)["message"])

	rec = httptest.NewRecorder()
	e.h.UpdateDepositStatus(rec, post(`{"depositId":1,"status":"completed"}`), e.admin)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.True(t, e.demoBalance(t).Equal(decimal.NewFromInt(12000)))
	assert.Equal(t, int64(1), dep.ID)
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	e := newEnv(t)
	_, err := e.ledger.RequestWithdrawal(context.Background(), e.userID, types.AccountTypeDemo, ledger.FundingInput{Amount: decimal.NewFromInt(500), Method: "bank"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	e.h.WithdrawalStatusTo(types.StatusFailed)(rec, withID(post(""), "1"), e.admin)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.True(t, e.demoBalance(t).Equal(decimal.NewFromInt(10500)))

	rec = httptest.NewRecorder()
	e.h.WithdrawalStatusTo(types.StatusFailed)(rec, withID(post(""), "abc"), e.admin)
	assert.Equal(t, "Request not found", decode(t, rec)["message"])
}

func TestUpdateUserStatus(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	e.h.UpdateUserStatus(rec, post(`{"userId":1,"status":"suspended"}`), e.admin)
	assert.Equal(t, true, decode(t, rec)["success"])
	u, err := e.st.UserByID(context.Background(), e.userID)
	require.NoError(t, err)
	assert.Equal(t, types.UserStatusSuspended, u.Status)

	rec = httptest.NewRecorder()
	e.h.UpdateUserStatus(rec, post(`{"userId":1,"status":"banned"}`), e.admin)
	assert.Equal(t, "Invalid status", decode(t, rec)["message"])

	rec = httptest.NewRecorder()
	e.h.UpdateUserStatus(rec, post(`{"userId":404,"status":"active"}`), e.admin)
	assert.Equal(t, "User not found", decode(t, rec)["message"])
}

func TestSuspendRevokesSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, token, err := e.sm.Start(ctx, httptest.NewRecorder(), e.userID, types.AccountTypeDemo, false)
	require.NoError(t, err)
	load := func() error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err := e.sm.Load(req)
		return err
	}
	require.NoError(t, load())

	rec := httptest.NewRecorder()
	e.h.UpdateUserStatus(rec, post(`{"userId":1,"status":"active"}`), e.admin)
	require.Equal(t, true, decode(t, rec)["success"])
	require.NoError(t, load())

	rec = httptest.NewRecorder()
	e.h.UpdateUserStatus(rec, post(`{"userId":1,"status":"suspended"}`), e.admin)
	require.Equal(t, true, decode(t, rec)["success"])
	assert.ErrorIs(t, load(), sessions.ErrNoSession)
	assert.Zero(t, e.st.RowCounts()["sessions"])
}

func TestVerifyAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	e.h.VerifyAccess(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "Not logged in", decode(t, rec)["message"])

	for _, tc := range []struct {
		admin   bool
		message string
	}{
		{false, "Admin access required"},
		{true, "Admin access verified"},
	} {
		_, token, err := e.sm.Start(ctx, httptest.NewRecorder(), e.userID, types.AccountTypeDemo, tc.admin)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.h.VerifyAccess(rec, req)
		out := decode(t, rec)
		assert.Equal(t, tc.admin, out["success"])
		assert.Equal(t, tc.message, out["message"])
	}
}
