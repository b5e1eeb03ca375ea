// Package store defines the persistence contract shared by the PostgreSQL, MySQL and
// in-memory adapters. Lock* methods take a row lock (SELECT ... FOR UPDATE) and are only
// meaningful inside WithTx.
package store

import (
	"context"
	"errors"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	// EmailOrUsernameTaken ignores the user with excludeID (0 excludes nobody).
	EmailOrUsernameTaken(ctx context.Context, email, username string, excludeID int64) (bool, error)
	ActivateUser(ctx context.Context, id int64) error
	RecordLoginFailure(ctx context.Context, email string, at time.Time) error
	RecordLoginSuccess(ctx context.Context, id int64, ip string, at time.Time) error
	UpdateUserProfile(ctx context.Context, id int64, p model.ProfileUpdate) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	SetUserStatus(ctx context.Context, id int64, status types.UserStatus) error
	CreateProfile(ctx context.Context, userID int64, accountType types.AccountType) error
	ListUsers(ctx context.Context, page Page) ([]model.UserListItem, error)
}

type AccountStore interface {
	// InsertAccountIfAbsent is a no-op on any unique conflict, (user_id, account_type) or
	// account_number; callers re-read by type to tell the two apart.
	InsertAccountIfAbsent(ctx context.Context, a *model.TradingAccount) error
	AccountByType(ctx context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error)
	AccountsByUser(ctx context.Context, userID int64) ([]model.TradingAccount, error)
	LatestAccountType(ctx context.Context, userID int64) (types.AccountType, error)
	LockAccount(ctx context.Context, id int64) (*model.TradingAccount, error)
	LockAccountByType(ctx context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error)
	AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error
}

type TradeStore interface {
	InsertTrade(ctx context.Context, t *model.Trade) (int64, error)
	TradesByUser(ctx context.Context, userID int64, page Page) ([]model.Trade, error)
	ListTrades(ctx context.Context, page Page) ([]model.Trade, error)
}

type FundingStore interface {
	InsertDeposit(ctx context.Context, d *model.Deposit) (int64, error)
	LockDeposit(ctx context.Context, id int64) (*model.Deposit, error)
	SetDepositStatus(ctx context.Context, id int64, status types.RequestStatus, at time.Time) error
	DepositsByUser(ctx context.Context, userID int64, page Page) ([]model.Deposit, error)
	// ListDeposits filters by status unless status is empty.
	ListDeposits(ctx context.Context, status types.RequestStatus, page Page) ([]model.Deposit, error)

	InsertWithdrawal(ctx context.Context, w *model.Withdrawal) (int64, error)
	LockWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	SetWithdrawalStatus(ctx context.Context, id int64, status types.RequestStatus, at time.Time) error
	WithdrawalsByUser(ctx context.Context, userID int64, page Page) ([]model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status types.RequestStatus, page Page) ([]model.Withdrawal, error)

	HistoryByUser(ctx context.Context, userID int64, page Page) ([]model.HistoryEntry, error)
}

type StatsStore interface {
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	SessionByID(ctx context.Context, id string) (*model.Session, error)
	UpdateSessionAccountType(ctx context.Context, id string, accountType types.AccountType) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteUserSessions(ctx context.Context, userID int64) (int64, error)
}

type SupportStore interface {
	CreateTicket(ctx context.Context, t *model.Ticket) (int64, error)
	TicketByID(ctx context.Context, id int64) (*model.Ticket, error)
	TicketsByUser(ctx context.Context, userID int64, page Page) ([]model.Ticket, error)
	ListTickets(ctx context.Context, status types.TicketStatus, page Page) ([]model.Ticket, error)
	SetTicketStatus(ctx context.Context, id int64, status types.TicketStatus, at time.Time) error
	AddTicketMessage(ctx context.Context, m *model.TicketMessage) (int64, error)
	TicketMessages(ctx context.Context, ticketID int64) ([]model.TicketMessage, error)

	CreateArticle(ctx context.Context, a *model.Article) (int64, error)
	ArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListArticles(ctx context.Context, publishedOnly bool, page Page) ([]model.Article, error)
}

// Querier is the full set of operations available both on the store and inside a transaction.
type Querier interface {
	UserStore
	AccountStore
	TradeStore
	FundingStore
	StatsStore
	SessionStore
	SupportStore
}

type Store interface {
	Querier
	// WithTx runs fn in one transaction; it commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Querier) error) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}
