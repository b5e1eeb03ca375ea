package admin

import (
	"context"
	"errors"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"go.uber.org/zap"
)

var (
	ErrInvalidUserStatus = errors.New("invalid user status")
	ErrUserNotFound      = errors.New("user not found")
)

// Service holds the read-side aggregations of the admin surface. Balance mutations go
// through the ledger.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates a new admin service
func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// ListUsers returns users joined with their trading accounts, one row per account.
func (s *Service) ListUsers(ctx context.Context, page store.Page) ([]model.UserListItem, error) {
	return s.store.ListUsers(ctx, page)
}

// DashboardStats aggregates live totals on every call.
func (s *Service) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	return s.store.DashboardStats(ctx)
}

// SetUserStatus moves a user between pending, active and suspended.
func (s *Service) SetUserStatus(ctx context.Context, userID int64, raw string) (types.UserStatus, error) {
	status, ok := types.ParseUserStatus(raw)
	if !ok {
		return "", ErrInvalidUserStatus
	}
	var revoked int64
	err := s.store.WithTx(ctx, func(tx store.Querier) error {
		if err := tx.SetUserStatus(ctx, userID, status); err != nil {
			return err
		}
		if status != types.UserStatusSuspended {
			return nil
		}
		n, err := tx.DeleteUserSessions(ctx, userID)
		revoked = n
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	s.log.Info("user status set",
		zap.Int64("user_id", userID),
		zap.String("status", string(status)),
		zap.Int64("sessions_revoked", revoked))
	return status, nil
}
