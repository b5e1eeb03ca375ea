package accounts

import (
	"errors"
	"fmt"
	"net/http"

	"swiftx/internal/httputil"
	"swiftx/internal/model"
	"swiftx/internal/types"

	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request, sess model.Session) {
	view, err := h.svc.Dashboard(r.Context(), sess)
	if err != nil {
		h.log.Error("dashboard failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		httputil.Fail(w, http.StatusOK, "Dashboard failed")
		return
	}
	httputil.Success(w, httputil.Envelope{"user": view.User, "accounts": view.Accounts})
}

func (h *Handler) CurrentAccountType(w http.ResponseWriter, r *http.Request, sess model.Session) {
	t := sess.AccountType
	if t == "" {
		t = types.AccountTypeDemo
	}
	httputil.Success(w, httputil.Envelope{"accountType": t})
}

func (h *Handler) SwitchAccountType(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		AccountType string `json:"accountType"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	t, err := h.svc.SwitchAccountType(r.Context(), sess, req.AccountType)
	if err != nil {
		if errors.Is(err, ErrInvalidAccountType) {
			httputil.Fail(w, http.StatusOK, "Invalid account type")
			return
		}
		h.log.Error("switch account type failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		httputil.Fail(w, http.StatusOK, "Failed to switch account")
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":     fmt.Sprintf("Switched to %s account", t),
		"accountType": t,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, sess model.Session) {
	accounts, err := h.svc.List(r.Context(), sess.UserID)
	if err != nil {
		h.log.Error("list accounts failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		httputil.Fail(w, http.StatusOK, "Failed to fetch accounts")
		return
	}
	httputil.Success(w, httputil.Envelope{"accounts": accounts})
}
