package mysqlstore

import (
	"context"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/types"
)

func (q *queries) CreateSession(ctx context.Context, s *model.Session) error {
	s.CreatedAt = q.now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, account_type, is_admin, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.AccountType), s.IsAdmin, s.ExpiresAt.UTC(), s.CreatedAt)
	return mapErr(err)
}

func (q *queries) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	var accountType string
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, account_type, is_admin, expires_at, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &accountType, &s.IsAdmin, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	s.AccountType = types.AccountType(accountType)
	return &s, nil
}

func (q *queries) UpdateSessionAccountType(ctx context.Context, id string, accountType types.AccountType) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE sessions SET account_type = ? WHERE id = ?`, string(accountType), id))
}

func (q *queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return mapErr(err)
}

func (q *queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (q *queries) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
