// Package ledger owns every balance mutation. Each one runs in a single transaction that
// row-locks the account (and the funding request, for status transitions) before reading
// the balance it changes.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	depositPrefix    = "DEP-"
	withdrawalPrefix = "WD-"
	maxBankDetails   = 4 << 10

	// Column widths of trades and the funding tables.
	maxAssetLength     = 50
	maxAssetNameLength = 100
	maxMethodLength    = 50
	tradeScale         = 8
)

var (
	maxAmount   = decimal.New(1, 12)
	maxQuantity = decimal.New(1, 7)
	maxPrice    = decimal.New(1, 12)

	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidQuantity     = errors.New("invalid quantity or price")
	ErrInvalidTradeType    = errors.New("invalid trade type")
	ErrAssetRequired       = errors.New("asset is required")
	ErrAssetTooLong        = errors.New("asset too long")
	ErrInvalidPrecision    = errors.New("quantity or price has more than 8 decimals")
	ErrMethodRequired      = errors.New("payment method is required")
	ErrMethodTooLong       = errors.New("payment method too long")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidBankDetails  = errors.New("invalid bank details")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidAction       = errors.New("invalid action")
	ErrRequestNotFound     = errors.New("request not found")
	ErrInvalidTransition   = errors.New("request is no longer pending")
)

type Options struct {
	// ReserveWithdrawals debits the balance when a withdrawal is requested.
	ReserveWithdrawals bool
}

type Service struct {
	store   store.Store
	reserve bool
	now     func() time.Time
	log     *zap.Logger
}

func NewService(st store.Store, opts Options, log *zap.Logger) *Service {
	return &Service{
		store:   st,
		reserve: opts.ReserveWithdrawals,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

func newReference(prefix string) string {
	return prefix + strings.ToUpper(uuid.NewString())
}

func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(maxAmount)
}

// lockOwnedAccount locks accountID, or the account of accountType when accountID is 0, and
// checks it belongs to userID.
func lockOwnedAccount(ctx context.Context, tx store.Querier, userID, accountID int64, accountType types.AccountType) (*model.TradingAccount, error) {
	var (
		acc *model.TradingAccount
		err error
	)
	if accountID > 0 {
		acc, err = tx.LockAccount(ctx, accountID)
	} else {
		if _, ok := types.ParseAccountType(string(accountType)); !ok {
			accountType = types.AccountTypeDemo
		}
		acc, err = tx.LockAccountByType(ctx, userID, accountType)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if acc.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

type TradeInput struct {
	AccountID   int64
	Asset       string
	AssetName   string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TotalAmount decimal.NullDecimal
	TradeType   string
}

// ApplyTrade records a completed trade and moves the balance by -total (buy) or +total
// (sell). A buy that would overdraw the account is rejected.
func (s *Service) ApplyTrade(ctx context.Context, userID int64, accountType types.AccountType, in TradeInput) (*model.Trade, decimal.Decimal, error) {
	tradeType, ok := types.ParseTradeType(in.TradeType)
	if !ok {
		return nil, decimal.Zero, ErrInvalidTradeType
	}
	asset := strings.ToUpper(strings.TrimSpace(in.Asset))
	if asset == "" {
		return nil, decimal.Zero, ErrAssetRequired
	}
	assetName := strings.TrimSpace(in.AssetName)
	if utf8.RuneCountInString(asset) > maxAssetLength || utf8.RuneCountInString(assetName) > maxAssetNameLength {
		return nil, decimal.Zero, ErrAssetTooLong
	}
	if !in.Quantity.IsPositive() || !in.Price.IsPositive() ||
		!in.Quantity.LessThan(maxQuantity) || !in.Price.LessThan(maxPrice) {
		return nil, decimal.Zero, ErrInvalidQuantity
	}
	if !in.Quantity.Equal(in.Quantity.Round(tradeScale)) || !in.Price.Equal(in.Price.Round(tradeScale)) {
		return nil, decimal.Zero, ErrInvalidPrecision
	}
	total := in.Quantity.Mul(in.Price).Round(2)
	if in.TotalAmount.Valid {
		total = in.TotalAmount.Decimal.Round(2)
	}
	if !validAmount(total) {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	delta := total
	if tradeType == types.TradeTypeBuy {
		delta = total.Neg()
	}

	trade := model.Trade{
		UserID:      userID,
		Asset:       asset,
		AssetName:   assetName,
		Quantity:    in.Quantity,
		Price:       in.Price,
		TotalAmount: total,
		TradeType:   tradeType,
		Status:      types.StatusCompleted,
	}
	var balance decimal.Decimal
	err := s.store.WithTx(ctx, func(tx store.Querier) error {
		acc, err := lockOwnedAccount(ctx, tx, userID, in.AccountID, accountType)
		if err != nil {
			return err
		}
		balance = acc.Balance.Add(delta)
		if balance.IsNegative() {
			return ErrInsufficientBalance
		}
		trade.AccountID = acc.ID
		if _, err := tx.InsertTrade(ctx, &trade); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		return tx.AddBalance(ctx, acc.ID, delta)
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	s.log.Info("trade applied",
		zap.Int64("user_id", userID),
		zap.Int64("account_id", trade.AccountID),
		zap.String("trade_type", string(tradeType)),
		zap.String("total", total.StringFixed(2)),
	)
	return &trade, balance, nil
}

type FundingInput struct {
	AccountID   int64
	Amount      decimal.Decimal
	Method      string
	Currency    string
	BankDetails json.RawMessage
}

func (in FundingInput) validate() (decimal.Decimal, string, error) {
	amount := in.Amount.Round(2)
	if !validAmount(amount) {
		return decimal.Zero, "", ErrInvalidAmount
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		return decimal.Zero, "", ErrMethodRequired
	}
	if utf8.RuneCountInString(method) > maxMethodLength {
		return decimal.Zero, "", ErrMethodTooLong
	}
	if _, err := currencyOr(in.Currency, "USD"); err != nil {
		return decimal.Zero, "", err
	}
	return amount, method, nil
}

// currencyOr returns the ISO 4217 code in raw, or fallback when raw is blank.
func currencyOr(raw, fallback string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return fallback, nil
	}
	if !currencyCode.MatchString(c) {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// RequestDeposit logs a pending deposit. The balance moves only when an admin completes it.
func (s *Service) RequestDeposit(ctx context.Context, userID int64, accountType types.AccountType, in FundingInput) (*model.Deposit, error) {
	amount, method, err := in.validate()
	if err != nil {
		return nil, err
	}
	var d model.Deposit
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		acc, err := lockOwnedAccount(ctx, tx, userID, in.AccountID, accountType)
		if err != nil {
			return err
		}
		cur, err := currencyOr(in.Currency, acc.Currency)
		if err != nil {
			return err
		}
		d = model.Deposit{
			UserID:          userID,
			AccountID:       acc.ID,
			Amount:          amount,
			Currency:        cur,
			PaymentMethod:   method,
			ReferenceNumber: newReference(depositPrefix),
			Status:          types.StatusPending,
		}
		_, err = tx.InsertDeposit(ctx, &d)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit requested", zap.Int64("user_id", userID), zap.String("reference", d.ReferenceNumber))
	return &d, nil
}

// RequestWithdrawal logs a pending withdrawal, debiting it immediately when withdrawals
// are reserved.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64, accountType types.AccountType, in FundingInput) (*model.Withdrawal, error) {
	amount, method, err := in.validate()
	if err != nil {
		return nil, err
	}
	details := in.BankDetails
	if len(details) > 0 {
		if len(details) > maxBankDetails || !json.Valid(details) {
			return nil, ErrInvalidBankDetails
		}
		if string(details) == "null" {
			details = nil
		}
	}
	var wd model.Withdrawal
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		acc, err := lockOwnedAccount(ctx, tx, userID, in.AccountID, accountType)
		if err != nil {
			return err
		}
		if s.reserve && acc.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		cur, err := currencyOr(in.Currency, acc.Currency)
		if err != nil {
			return err
		}
		wd = model.Withdrawal{
			UserID:          userID,
			AccountID:       acc.ID,
			Amount:          amount,
			Currency:        cur,
			PaymentMethod:   method,
			BankDetails:     details,
			ReferenceNumber: newReference(withdrawalPrefix),
			Status:          types.StatusPending,
		}
		if _, err := tx.InsertWithdrawal(ctx, &wd); err != nil {
			return err
		}
		if s.reserve {
			return tx.AddBalance(ctx, acc.ID, amount.Neg())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal requested", zap.Int64("user_id", userID), zap.String("reference", wd.ReferenceNumber))
	return &wd, nil
}

func parseTarget(raw string) (types.RequestStatus, error) {
	status, ok := types.ParseRequestStatus(raw)
	if !ok || status == types.StatusPending {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// SetDepositStatus moves a pending deposit to completed or failed. Completion credits the
// account. Repeating the current status is a no-op; any other move away from a settled
// status is ErrInvalidTransition.
func (s *Service) SetDepositStatus(ctx context.Context, id int64, raw string) (*model.Deposit, error) {
	target, err := parseTarget(raw)
	if err != nil {
		return nil, err
	}
	var d *model.Deposit
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		d, err = tx.LockDeposit(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if d.Status == target {
			return nil
		}
		if d.Status != types.StatusPending {
			return ErrInvalidTransition
		}
		now := s.now()
		if target == types.StatusCompleted {
			if _, err := tx.LockAccount(ctx, d.AccountID); err != nil {
				return fmt.Errorf("lock account %d: %w", d.AccountID, err)
			}
			if err := tx.AddBalance(ctx, d.AccountID, d.Amount); err != nil {
				return err
			}
		}
		if err := tx.SetDepositStatus(ctx, id, target, now); err != nil {
			return err
		}
		d.Status, d.UpdatedAt = target, now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit status set", zap.Int64("deposit_id", id), zap.String("status", string(target)))
	return d, nil
}

// SetWithdrawalStatus moves a pending withdrawal to completed or failed. Failure refunds
// the amount; completion leaves the balance alone.
func (s *Service) SetWithdrawalStatus(ctx context.Context, id int64, raw string) (*model.Withdrawal, error) {
	target, err := parseTarget(raw)
	if err != nil {
		return nil, err
	}
	var wd *model.Withdrawal
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		wd, err = tx.LockWithdrawal(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if wd.Status == target {
			return nil
		}
		if wd.Status != types.StatusPending {
			return ErrInvalidTransition
		}
		now := s.now()
		if target == types.StatusFailed {
			if _, err := tx.LockAccount(ctx, wd.AccountID); err != nil {
				return fmt.Errorf("lock account %d: %w", wd.AccountID, err)
			}
			if err := tx.AddBalance(ctx, wd.AccountID, wd.Amount); err != nil {
				return err
			}
		}
		if err := tx.SetWithdrawalStatus(ctx, id, target, now); err != nil {
			return err
		}
		wd.Status, wd.UpdatedAt = target, now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal status set", zap.Int64("withdrawal_id", id), zap.String("status", string(target)))
	return wd, nil
}

// AdjustBalance credits or debits the (userID, accountType) account directly. Debits
// never take the balance below zero.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, accountType types.AccountType, amount decimal.Decimal, rawAction string) (*model.TradingAccount, error) {
	action, ok := types.ParseAdjustAction(rawAction)
	if !ok {
		return nil, ErrInvalidAction
	}
	amount = amount.Round(2)
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if accountType == "" {
		accountType = types.AccountTypeDemo
	}
	if _, ok := types.ParseAccountType(string(accountType)); !ok {
		return nil, ErrAccountNotFound
	}
	delta := amount
	if action == types.AdjustDebit {
		delta = amount.Neg()
	}
	var acc *model.TradingAccount
	err := s.store.WithTx(ctx, func(tx store.Querier) error {
		var err error
		acc, err = lockOwnedAccount(ctx, tx, userID, 0, accountType)
		if err != nil {
			return err
		}
		next := acc.Balance.Add(delta)
		if next.IsNegative() {
			return ErrInsufficientBalance
		}
		if err := tx.AddBalance(ctx, acc.ID, delta); err != nil {
			return err
		}
		acc.Balance = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance adjusted",
		zap.Int64("user_id", userID),
		zap.String("account_type", string(accountType)),
		zap.String("action", string(action)),
		zap.String("amount", amount.StringFixed(2)),
	)
	return acc, nil
}

func (s *Service) Trades(ctx context.Context, userID int64, page store.Page) ([]model.Trade, error) {
	return s.store.TradesByUser(ctx, userID, page)
}

func (s *Service) Deposits(ctx context.Context, userID int64, page store.Page) ([]model.Deposit, error) {
	return s.store.DepositsByUser(ctx, userID, page)
}

func (s *Service) Withdrawals(ctx context.Context, userID int64, page store.Page) ([]model.Withdrawal, error) {
	return s.store.WithdrawalsByUser(ctx, userID, page)
}

func (s *Service) History(ctx context.Context, userID int64, page store.Page) ([]model.HistoryEntry, error) {
	return s.store.HistoryByUser(ctx, userID, page)
}

func (s *Service) AllTrades(ctx context.Context, page store.Page) ([]model.Trade, error) {
	return s.store.ListTrades(ctx, page)
}

func parseFilter(raw string) (types.RequestStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	status, ok := types.ParseRequestStatus(raw)
	if !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func (s *Service) AllDeposits(ctx context.Context, rawStatus string, page store.Page) ([]model.Deposit, error) {
	status, err := parseFilter(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.store.ListDeposits(ctx, status, page)
}

func (s *Service) AllWithdrawals(ctx context.Context, rawStatus string, page store.Page) ([]model.Withdrawal, error) {
	status, err := parseFilter(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.store.ListWithdrawals(ctx, status, page)
}
