package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	currency      = "USD"
	numberPrefix  = "SXR"
	ensureRetries = 3
)

var ErrInvalidAccountType = errors.New("invalid account type")

// StartingBalance is the seed balance of a freshly created account.
func StartingBalance(t types.AccountType) decimal.Decimal {
	if t == types.AccountTypeDemo {
		return decimal.NewFromInt(10000)
	}
	return decimal.Zero
}

func NewAccountNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return numberPrefix + strings.ToUpper(hex[:12])
}

// EnsureAccountTx returns the (userID, t) account, creating it when absent. The insert is
// conflict-tolerant, so a concurrent creator or an account number collision both end in a
// re-read; only the latter needs another attempt.
func EnsureAccountTx(ctx context.Context, q store.Querier, userID int64, t types.AccountType) (*model.TradingAccount, error) {
	for attempt := 0; attempt < ensureRetries; attempt++ {
		acc, err := q.AccountByType(ctx, userID, t)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		err = q.InsertAccountIfAbsent(ctx, &model.TradingAccount{
			UserID:        userID,
			AccountNumber: NewAccountNumber(),
			AccountType:   t,
			Balance:       StartingBalance(t),
			Currency:      currency,
		})
		if err != nil {
			return nil, fmt.Errorf("insert %s account: %w", t, err)
		}
	}
	acc, err := q.AccountByType(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("ensure %s account: %w", t, err)
	}
	return acc, nil
}

// SessionBinder updates the account type a session is bound to.
type SessionBinder interface {
	SetAccountType(ctx context.Context, sessionID string, t types.AccountType) error
}

type Service struct {
	store    store.Store
	sessions SessionBinder
	log      *zap.Logger
}

func NewService(st store.Store, sessions SessionBinder, log *zap.Logger) *Service {
	return &Service{store: st, sessions: sessions, log: log}
}

func (s *Service) EnsureAccount(ctx context.Context, userID int64, t types.AccountType) (*model.TradingAccount, error) {
	var acc *model.TradingAccount
	err := s.store.WithTx(ctx, func(tx store.Querier) error {
		var err error
		acc, err = EnsureAccountTx(ctx, tx, userID, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

type DashboardUser struct {
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Email     string           `json:"email"`
	Status    types.UserStatus `json:"status"`
}

type Dashboard struct {
	User     DashboardUser          `json:"user"`
	Accounts []model.TradingAccount `json:"accounts"`
}

// Dashboard returns the user and the account of the session's type, creating it lazily.
func (s *Service) Dashboard(ctx context.Context, sess model.Session) (Dashboard, error) {
	u, err := s.store.UserByID(ctx, sess.UserID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load user: %w", err)
	}
	t := sess.AccountType
	if _, ok := types.ParseAccountType(string(t)); !ok {
		t = types.AccountTypeDemo
	}
	acc, err := s.EnsureAccount(ctx, sess.UserID, t)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		User: DashboardUser{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Status:    u.Status,
		},
		Accounts: []model.TradingAccount{*acc},
	}, nil
}

func (s *Service) SwitchAccountType(ctx context.Context, sess model.Session, raw string) (types.AccountType, error) {
	t, ok := types.ParseAccountType(raw)
	if !ok {
		return "", ErrInvalidAccountType
	}
	if _, err := s.EnsureAccount(ctx, sess.UserID, t); err != nil {
		return "", err
	}
	if err := s.sessions.SetAccountType(ctx, sess.ID, t); err != nil {
		return "", fmt.Errorf("bind session: %w", err)
	}
	s.log.Debug("account type switched", zap.Int64("user_id", sess.UserID), zap.String("account_type", string(t)))
	return t, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]model.TradingAccount, error) {
	return s.store.AccountsByUser(ctx, userID)
}
