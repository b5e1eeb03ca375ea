package pgstore

import (
	"context"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/types"
)

func (q *queries) CreateSession(ctx context.Context, s *model.Session) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, account_type, is_admin, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.UserID, string(s.AccountType), s.IsAdmin, s.ExpiresAt,
	).Scan(&s.CreatedAt)
	return mapErr(err)
}

func (q *queries) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	var accountType string
	err := q.db.QueryRow(ctx, `
		SELECT id, user_id, account_type, is_admin, expires_at, created_at FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &accountType, &s.IsAdmin, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	s.AccountType = types.AccountType(accountType)
	return &s, nil
}

func (q *queries) UpdateSessionAccountType(ctx context.Context, id string, accountType types.AccountType) error {
	return requireRow(q.db.Exec(ctx, `UPDATE sessions SET account_type = $2 WHERE id = $1`, id, string(accountType)))
}

func (q *queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return mapErr(err)
}

func (q *queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (q *queries) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
