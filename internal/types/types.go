package types

import "strings"

type AccountType string

type TradeType string

type RequestStatus string

type Role string

type UserStatus string

type TicketStatus string

type AdjustAction string

const (
	AccountTypeDemo AccountType = "demo"
	AccountTypeLive AccountType = "live"
)

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAnswered TicketStatus = "answered"
	TicketStatusClosed   TicketStatus = "closed"
)

const (
	AdjustCredit AdjustAction = "credit"
	AdjustDebit  AdjustAction = "debit"
)

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ParseAccountType(raw string) (AccountType, bool) {
	switch t := AccountType(normalize(raw)); t {
	case AccountTypeDemo, AccountTypeLive:
		return t, true
	}
	return "", false
}

func ParseTradeType(raw string) (TradeType, bool) {
	switch t := TradeType(normalize(raw)); t {
	case TradeTypeBuy, TradeTypeSell:
		return t, true
	}
	return "", false
}

func ParseRequestStatus(raw string) (RequestStatus, bool) {
	switch s := RequestStatus(normalize(raw)); s {
	case StatusPending, StatusCompleted, StatusFailed:
		return s, true
	}
	return "", false
}

func ParseUserStatus(raw string) (UserStatus, bool) {
	switch s := UserStatus(normalize(raw)); s {
	case UserStatusPending, UserStatusActive, UserStatusSuspended:
		return s, true
	}
	return "", false
}

func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch s := TicketStatus(normalize(raw)); s {
	case TicketStatusOpen, TicketStatusAnswered, TicketStatusClosed:
		return s, true
	}
	return "", false
}

func ParseAdjustAction(raw string) (AdjustAction, bool) {
	switch a := AdjustAction(normalize(raw)); a {
	case AdjustCredit, AdjustDebit:
		return a, true
	}
	return "", false
}
