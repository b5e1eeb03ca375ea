package mysqlstore

import (
	"context"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
)

const userColumns = `id, first_name, last_name, username, email, COALESCE(phone, ''), COALESCE(country, ''),
	password_hash, role, status, email_verified, COALESCE(verification_code, ''), verification_sent_at,
	failed_logins, last_login_at, COALESCE(last_login_ip, ''), created_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var role, status string
	if err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.Phone, &u.Country,
		&u.PasswordHash, &role, &status, &u.EmailVerified, &u.VerificationCode, &u.VerificationSentAt,
		&u.FailedLogins, &u.LastLoginAt, &u.LastLoginIP, &u.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	u.Role = types.Role(role)
	u.Status = types.UserStatus(status)
	return &u, nil
}

func (q *queries) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	u.CreatedAt = q.now()
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO users (first_name, last_name, username, email, phone, country, password_hash,
			role, status, email_verified, verification_code, verification_sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Username, u.Email, nullIfEmpty(u.Phone), nullIfEmpty(u.Country), u.PasswordHash,
		string(u.Role), string(u.Status), u.EmailVerified, nullIfEmpty(u.VerificationCode), u.VerificationSentAt,
		u.CreatedAt))
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (q *queries) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (q *queries) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (q *queries) EmailOrUsernameTaken(ctx context.Context, email, username string, excludeID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (email = ? OR (? <> '' AND username = ?)) AND id <> ?
		)`, email, username, username, excludeID).Scan(&taken)
	return taken, mapErr(err)
}

func (q *queries) ActivateUser(ctx context.Context, id int64) error {
	return requireRow(q.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = TRUE, status = 'active', verification_code = NULL, verification_sent_at = NULL
		WHERE id = ? AND status = 'pending'`, id))
}

func (q *queries) RecordLoginFailure(ctx context.Context, email string, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET failed_logins = failed_logins + 1 WHERE email = ?`, email)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO login_failures (email, attempts, last_attempt_at) VALUES (?, 1, ?)
		ON DUPLICATE KEY UPDATE attempts = attempts + 1, last_attempt_at = VALUES(last_attempt_at)`,
		email, at.UTC())
	return mapErr(err)
}

func (q *queries) RecordLoginSuccess(ctx context.Context, id int64, ip string, at time.Time) error {
	return requireRow(q.db.ExecContext(ctx, `
		UPDATE users SET failed_logins = 0, last_login_at = ?, last_login_ip = ? WHERE id = ?`,
		at.UTC(), nullIfEmpty(ip), id))
}

func (q *queries) UpdateUserProfile(ctx context.Context, id int64, p model.ProfileUpdate) error {
	return requireRow(q.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, email = ?, phone = ?, country = ? WHERE id = ?`,
		p.FirstName, p.LastName, p.Email, nullIfEmpty(p.Phone), nullIfEmpty(p.Country), id))
}

func (q *queries) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id))
}

func (q *queries) SetUserStatus(ctx context.Context, id int64, status types.UserStatus) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), id))
}

func (q *queries) CreateProfile(ctx context.Context, userID int64, accountType types.AccountType) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO user_profiles (user_id, account_type) VALUES (?, ?)`,
		userID, string(accountType))
	return mapErr(err)
}

func (q *queries) ListUsers(ctx context.Context, page store.Page) ([]model.UserListItem, error) {
	page = page.Normalize()
	rows, err := q.db.QueryContext(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.username, u.email, u.role, u.status, u.created_at,
			ta.id, ta.account_number, ta.account_type, ta.balance, ta.currency
		FROM users u
		LEFT JOIN trading_accounts ta ON ta.user_id = u.id
		ORDER BY u.created_at DESC, u.id DESC, ta.id ASC
		LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.UserListItem, 0)
	for rows.Next() {
		var it model.UserListItem
		var role, status string
		var accountType *string
		var balance decimal.NullDecimal
		if err := rows.Scan(
			&it.ID, &it.FirstName, &it.LastName, &it.Username, &it.Email, &role, &status, &it.CreatedAt,
			&it.AccountID, &it.AccountNumber, &accountType, &balance, &it.Currency,
		); err != nil {
			return nil, err
		}
		it.Role = types.Role(role)
		it.Status = types.UserStatus(status)
		if accountType != nil {
			t := types.AccountType(*accountType)
			it.AccountType = &t
		}
		if balance.Valid {
			b := balance.Decimal
			it.Balance = &b
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
