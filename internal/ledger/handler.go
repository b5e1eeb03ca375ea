package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"swiftx/internal/httputil"
	"swiftx/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// ValidationMessage returns the user-facing text for ledger validation errors.
func ValidationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid amount", true
	case errors.Is(err, ErrInvalidQuantity):
		return "Invalid quantity or price", true
	case errors.Is(err, ErrInvalidPrecision):
		return "Quantity and price allow at most 8 decimal places", true
	case errors.Is(err, ErrAssetTooLong):
		return "Asset name is too long", true
	case errors.Is(err, ErrMethodTooLong):
		return "Payment method must be at most 50 characters", true
	case errors.Is(err, ErrInvalidCurrency):
		return "Currency must be a 3-letter code", true
	case errors.Is(err, ErrInvalidTradeType):
		return "Invalid trade type", true
	case errors.Is(err, ErrAssetRequired):
		return "Asset is required", true
	case errors.Is(err, ErrMethodRequired):
		return "Payment method is required", true
	case errors.Is(err, ErrInvalidBankDetails):
		return "Invalid bank details", true
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found", true
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance", true
	case errors.Is(err, ErrInvalidStatus):
		return "Invalid status", true
	case errors.Is(err, ErrInvalidAction):
		return "Invalid action", true
	case errors.Is(err, ErrRequestNotFound):
		return "Request not found", true
	case errors.Is(err, ErrInvalidTransition):
		return "Request has already been processed", true
	}
	return "", false
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string, sess model.Session) {
	if msg, ok := ValidationMessage(err); ok {
		httputil.Fail(w, http.StatusOK, msg)
		return
	}
	h.log.Error(fallback, zap.Int64("user_id", sess.UserID), zap.Error(err))
	httputil.Fail(w, http.StatusOK, fallback)
}

func (h *Handler) Trade(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		AccountID   int64               `json:"accountId"`
		Asset       string              `json:"asset"`
		AssetName   string              `json:"assetName"`
		Quantity    decimal.Decimal     `json:"quantity"`
		Price       decimal.Decimal     `json:"price"`
		TotalAmount decimal.NullDecimal `json:"totalAmount"`
		TradeType   string              `json:"tradeType"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	trade, balance, err := h.svc.ApplyTrade(r.Context(), sess.UserID, sess.AccountType, TradeInput{
		AccountID:   req.AccountID,
		Asset:       req.Asset,
		AssetName:   req.AssetName,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TotalAmount: req.TotalAmount,
		TradeType:   req.TradeType,
	})
	if err != nil {
		h.fail(w, err, "Trade failed", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message": "Trade completed successfully",
		"trade":   trade,
		"balance": balance,
	})
}

type fundingRequest struct {
	AccountID   int64           `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Currency    string          `json:"currency"`
	BankDetails json.RawMessage `json:"bankDetails"`
}

func (req fundingRequest) input() FundingInput {
	return FundingInput{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Method:      req.Method,
		Currency:    req.Currency,
		BankDetails: req.BankDetails,
	}
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req fundingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	d, err := h.svc.RequestDeposit(r.Context(), sess.UserID, sess.AccountType, req.input())
	if err != nil {
		h.fail(w, err, "Deposit failed", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":   "Deposit request submitted",
		"reference": d.ReferenceNumber,
		"deposit":   d,
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req fundingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	wd, err := h.svc.RequestWithdrawal(r.Context(), sess.UserID, sess.AccountType, req.input())
	if err != nil {
		h.fail(w, err, "Withdrawal failed", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":    "Withdrawal request submitted",
		"reference":  wd.ReferenceNumber,
		"withdrawal": wd,
	})
}

func (h *Handler) Trades(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.svc.Trades(r.Context(), sess.UserID, httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch trades", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"trades": rows})
}

func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.svc.Deposits(r.Context(), sess.UserID, httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch deposits", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"deposits": rows})
}

func (h *Handler) Withdrawals(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.svc.Withdrawals(r.Context(), sess.UserID, httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch withdrawals", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"withdrawals": rows})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, sess model.Session) {
	rows, err := h.svc.History(r.Context(), sess.UserID, httputil.Page(r))
	if err != nil {
		h.fail(w, err, "Failed to fetch history", sess)
		return
	}
	httputil.Success(w, httputil.Envelope{"history": rows})
}
