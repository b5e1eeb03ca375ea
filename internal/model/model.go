package model

import (
	"encoding/json"
	"time"

	"swiftx/internal/types"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                 int64            `json:"id"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	Username           string           `json:"username"`
	Email              string           `json:"email"`
	Phone              string           `json:"phone"`
	Country            string           `json:"country"`
	PasswordHash       string           `json:"-"`
	Role               types.Role       `json:"role"`
	Status             types.UserStatus `json:"status"`
	EmailVerified      bool             `json:"email_verified"`
	VerificationCode   string           `json:"-"`
	VerificationSentAt *time.Time       `json:"-"`
	FailedLogins       int              `json:"failed_logins"`
	LastLoginAt        *time.Time       `json:"last_login_at,omitempty"`
	LastLoginIP        string           `json:"last_login_ip,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ProfileUpdate carries the user-editable identity fields.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Country   string
}

type TradingAccount struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	AccountNumber string            `json:"account_number"`
	AccountType   types.AccountType `json:"account_type"`
	Balance       decimal.Decimal   `json:"balance"`
	Currency      string            `json:"currency"`
	CreatedAt     time.Time         `json:"created_at"`
}

type Trade struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	AccountID   int64               `json:"account_id"`
	Asset       string              `json:"asset"`
	AssetName   string              `json:"asset_name"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Price       decimal.Decimal     `json:"price"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	TradeType   types.TradeType     `json:"trade_type"`
	Status      types.RequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

type Deposit struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	AccountID       int64               `json:"account_id"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"payment_method"`
	ReferenceNumber string              `json:"reference_number"`
	Status          types.RequestStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type Withdrawal struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	AccountID       int64               `json:"account_id"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"payment_method"`
	BankDetails     json.RawMessage     `json:"bank_details,omitempty"`
	ReferenceNumber string              `json:"reference_number"`
	Status          types.RequestStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// HistoryEntry is one row of the combined trades/deposits/withdrawals feed.
type HistoryEntry struct {
	Type        string          `json:"type"`
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UserListItem is a users LEFT JOIN trading_accounts row; account fields are nil for
// users without any trading account.
type UserListItem struct {
	ID            int64              `json:"id"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	Username      string             `json:"username"`
	Email         string             `json:"email"`
	Role          types.Role         `json:"role"`
	Status        types.UserStatus   `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	AccountID     *int64             `json:"account_id"`
	AccountNumber *string            `json:"account_number"`
	AccountType   *types.AccountType `json:"account_type"`
	Balance       *decimal.Decimal   `json:"balance"`
	Currency      *string            `json:"currency"`
}

type DashboardStats struct {
	TotalUsers         int64           `json:"totalUsers"`
	TotalBalance       decimal.Decimal `json:"totalBalance"`
	TotalTrades        int64           `json:"totalTrades"`
	PendingDeposits    int64           `json:"pendingDeposits"`
	PendingWithdrawals int64           `json:"pendingWithdrawals"`
	PendingActions     int64           `json:"pendingActions"`
}

type Session struct {
	ID          string            `json:"id"`
	UserID      int64             `json:"user_id"`
	AccountType types.AccountType `json:"account_type"`
	IsAdmin     bool              `json:"is_admin"`
	ExpiresAt   time.Time         `json:"expires_at"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Ticket struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Subject   string             `json:"subject"`
	Category  string             `json:"category"`
	Priority  string             `json:"priority"`
	Status    types.TicketStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type TicketMessage struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	SenderType string    `json:"sender_type"`
	SenderID   int64     `json:"sender_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type Article struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
