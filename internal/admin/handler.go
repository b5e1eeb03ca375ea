package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"swiftx/internal/httputil"
	"swiftx/internal/ledger"
	"swiftx/internal/model"
	"swiftx/internal/sessions"
	"swiftx/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler serves /api/admin/*. Every method assumes the admin middleware already ran.
type Handler struct {
	svc      *Service
	ledger   *ledger.Service
	sessions *sessions.Manager
	log      *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(svc *Service, ledgerSvc *ledger.Service, sm *sessions.Manager, log *zap.Logger) *Handler {
	return &Handler{svc: svc, ledger: ledgerSvc, sessions: sm, log: log}
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string, sess model.Session) {
	if msg, ok := ledger.ValidationMessage(err); ok {
		httputil.Fail(w, http.StatusOK, msg)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidUserStatus):
		httputil.Fail(w, http.StatusOK, "Invalid status")
	case errors.Is(err, ErrUserNotFound):
		httputil.Fail(w, http.StatusOK, "User not found")
	default:
		h.log.Error(fallback, zap.Int64("admin_id", sess.UserID), zap.Error(err))
		httputil.Fail(w, http.StatusOK, fallback)
	}
}

// VerifyAccess reports whether the caller holds an admin session. It runs outside the
// admin middleware so that it can tell "not logged in" apart.
func (h *Handler) VerifyAccess(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		if !errors.Is(err, sessions.ErrNoSession) {
			h.log.Error("verify admin access failed", zap.Error(err))
			httputil.Fail(w, http.StatusOK, "Verification failed")
			return
		}
		httputil.Fail(w, http.StatusOK, "Not logged in")
		return
	}
	if !sess.IsAdmin {
		httputil.Fail(w, http.StatusOK, "Admin access required")
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Admin access verified"})
}

// Users lists users with their trading accounts
func (h *Handler) Users(w http.ResponseWriter, r *http.Request, sess model.Session) {
	users, err := h.svc.ListUsers(r.Context(), httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch users", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"users": users})
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request, sess model.Session) {
	stats, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch dashboard stats", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"stats": stats})
}

// UpdateBalance credits or debits one trading account of a user
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		UserID      int64           `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Action      string          `json:"action"`
		AccountType string          `json:"accountType"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	acc, err := h.ledger.AdjustBalance(r.Context(), req.UserID, types.AccountType(req.AccountType), req.Amount, req.Action)
	if err != nil {
		h.fail(w, err, "Failed to update balance", sess)
		return
	}
	verb := "credited"
	if a, _ := types.ParseAdjustAction(req.Action); a == types.AdjustDebit {
		verb = "debited"
	}
	httputil.Success(w, httputil.Envelope{
		"message": fmt.Sprintf("Balance %s successfully", verb),
		"account": acc,
	})
}

func (h *Handler) UpdateDepositStatus(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		DepositID int64  `json:"depositId"`
		Status    string `json:"status"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	h.setDepositStatus(w, r, sess, req.DepositID, req.Status)
}

func (h *Handler) UpdateWithdrawalStatus(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		WithdrawalID int64  `json:"withdrawalId"`
		Status       string `json:"status"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	h.setWithdrawalStatus(w, r, sess, req.WithdrawalID, req.Status)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// DepositStatusTo returns a handler for /deposits/{id}/approve|reject.
func (h *Handler) DepositStatusTo(status types.RequestStatus) func(http.ResponseWriter, *http.Request, model.Session) {
	return func(w http.ResponseWriter, r *http.Request, sess model.Session) {
		id, ok := pathID(r)
		if !ok {
			httputil.Fail(w, http.StatusOK, "Request not found")
			return
		}
		h.setDepositStatus(w, r, sess, id, string(status))
	}
}

// WithdrawalStatusTo returns a handler for /withdrawals/{id}/approve|reject.
func (h *Handler) WithdrawalStatusTo(status types.RequestStatus) func(http.ResponseWriter, *http.Request, model.Session) {
	return func(w http.ResponseWriter, r *http.Request, sess model.Session) {
		id, ok := pathID(r)
		if !ok {
			httputil.Fail(w, http.StatusOK, "Request not found")
			return
		}
		h.setWithdrawalStatus(w, r, sess, id, string(status))
	}
}

func (h *Handler) setDepositStatus(w http.ResponseWriter, r *http.Request, sess model.Session, id int64, status string) {
	d, err := h.ledger.SetDepositStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, err, "Failed to update deposit status", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message": fmt.Sprintf("Deposit marked as %s", d.Status),
		"deposit": d,
	})
}

func (h *Handler) setWithdrawalStatus(w http.ResponseWriter, r *http.Request, sess model.Session, id int64, status string) {
	wd, err := h.ledger.SetWithdrawalStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, err, "Failed to update withdrawal status", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":    fmt.Sprintf("Withdrawal marked as %s", wd.Status),
		"withdrawal": wd,
	})
}

func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		UserID int64  `json:"userId"`
		Status string `json:"status"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	status, err := h.svc.SetUserStatus(r.Context(), req.UserID, req.Status)
	if err != nil {
		h.fail(w, err, "Failed to update user status", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message": fmt.Sprintf("User marked as %s", status),
		"status":  status,
	})
}

func (h *Handler) Trades(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.ledger.AllTrades(r.Context(), httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch trades", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"trades": rows})
}

func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.ledger.AllDeposits(r.Context(), r.URL.Query().Get("status"), httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch deposits", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"deposits": rows})
}

func (h *Handler) Withdrawals(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.ledger.AllWithdrawals(r.Context(), r.URL.Query().Get("status"), httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch withdrawals", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"withdrawals": rows})
}
