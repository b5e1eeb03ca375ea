package mysqlstore

import (
	"context"
	"encoding/json"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

const depositColumns = `id, user_id, account_id, amount, currency, COALESCE(payment_method, ''),
	reference_number, status, created_at, updated_at`

const withdrawalColumns = `id, user_id, account_id, amount, currency, COALESCE(payment_method, ''),
	COALESCE(CAST(bank_details AS CHAR), ''), reference_number, status, created_at, updated_at`

func scanDeposit(row scanner) (*model.Deposit, error) {
	var d model.Deposit
	var status string
	if err := row.Scan(&d.ID, &d.UserID, &d.AccountID, &d.Amount, &d.Currency, &d.PaymentMethod,
		&d.ReferenceNumber, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	d.Status = types.RequestStatus(status)
	return &d, nil
}

func scanWithdrawal(row scanner) (*model.Withdrawal, error) {
	var w model.Withdrawal
	var status, details string
	if err := row.Scan(&w.ID, &w.UserID, &w.AccountID, &w.Amount, &w.Currency, &w.PaymentMethod,
		&details, &w.ReferenceNumber, &status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	w.Status = types.RequestStatus(status)
	if details != "" {
		w.BankDetails = json.RawMessage(details)
	}
	return &w, nil
}

func (q *queries) InsertDeposit(ctx context.Context, d *model.Deposit) (int64, error) {
	d.CreatedAt = q.now()
	d.UpdatedAt = d.CreatedAt
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO deposits (user_id, account_id, amount, currency, payment_method, reference_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.AccountID, d.Amount, d.Currency, nullIfEmpty(d.PaymentMethod), d.ReferenceNumber,
		string(d.Status), d.CreatedAt, d.UpdatedAt))
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (q *queries) LockDeposit(ctx context.Context, id int64) (*model.Deposit, error) {
	return scanDeposit(q.db.QueryRowContext(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = ? FOR UPDATE`, id))
}

func (q *queries) SetDepositStatus(ctx context.Context, id int64, status types.RequestStatus, at time.Time) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE deposits SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), at.UTC(), id))
}

func (q *queries) DepositsByUser(ctx context.Context, userID int64, page store.Page) ([]model.Deposit, error) {
	page = page.Normalize()
	return q.deposits(ctx, `
		SELECT `+depositColumns+` FROM deposits WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, page.Limit, page.Offset)
}

func (q *queries) ListDeposits(ctx context.Context, status types.RequestStatus, page store.Page) ([]model.Deposit, error) {
	page = page.Normalize()
	return q.deposits(ctx, `
		SELECT `+depositColumns+` FROM deposits WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, string(status), string(status), page.Limit, page.Offset)
}

func (q *queries) deposits(ctx context.Context, query string, args ...any) ([]model.Deposit, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Deposit, 0)
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (q *queries) InsertWithdrawal(ctx context.Context, w *model.Withdrawal) (int64, error) {
	w.CreatedAt = q.now()
	w.UpdatedAt = w.CreatedAt
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO withdrawals (user_id, account_id, amount, currency, payment_method, bank_details,
			reference_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.UserID, w.AccountID, w.Amount, w.Currency, nullIfEmpty(w.PaymentMethod), nullIfEmpty(string(w.BankDetails)),
		w.ReferenceNumber, string(w.Status), w.CreatedAt, w.UpdatedAt))
	if err != nil {
		return 0, err
	}
	w.ID = id
	return id, nil
}

func (q *queries) LockWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ? FOR UPDATE`, id))
}

func (q *queries) SetWithdrawalStatus(ctx context.Context, id int64, status types.RequestStatus, at time.Time) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE withdrawals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), at.UTC(), id))
}

func (q *queries) WithdrawalsByUser(ctx context.Context, userID int64, page store.Page) ([]model.Withdrawal, error) {
	page = page.Normalize()
	return q.withdrawals(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, page.Limit, page.Offset)
}

func (q *queries) ListWithdrawals(ctx context.Context, status types.RequestStatus, page store.Page) ([]model.Withdrawal, error) {
	page = page.Normalize()
	return q.withdrawals(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, string(status), string(status), page.Limit, page.Offset)
}

func (q *queries) withdrawals(ctx context.Context, query string, args ...any) ([]model.Withdrawal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Withdrawal, 0)
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (q *queries) HistoryByUser(ctx context.Context, userID int64, page store.Page) ([]model.HistoryEntry, error) {
	page = page.Normalize()
	rows, err := q.db.QueryContext(ctx, `
		SELECT 'trade' AS type, id, asset AS description, total_amount AS amount,
			'USD' AS currency, CAST(status AS CHAR) AS status, created_at
		FROM trades WHERE user_id = ?
		UNION ALL
		SELECT 'deposit', id, COALESCE(payment_method, ''), amount, currency, CAST(status AS CHAR), created_at
		FROM deposits WHERE user_id = ?
		UNION ALL
		SELECT 'withdrawal', id, COALESCE(payment_method, ''), amount, currency, CAST(status AS CHAR), created_at
		FROM withdrawals WHERE user_id = ?
		ORDER BY created_at DESC, type ASC, id DESC
		LIMIT ? OFFSET ?`, userID, userID, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.Type, &h.ID, &h.Description, &h.Amount, &h.Currency, &h.Status, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *queries) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var s model.DashboardStats
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'user'),
			(SELECT COALESCE(SUM(balance), 0) FROM trading_accounts),
			(SELECT COUNT(*) FROM trades),
			(SELECT COUNT(*) FROM deposits WHERE status = 'pending'),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending')`,
	).Scan(&s.TotalUsers, &s.TotalBalance, &s.TotalTrades, &s.PendingDeposits, &s.PendingWithdrawals)
	if err != nil {
		return s, mapErr(err)
	}
	s.PendingActions = s.PendingDeposits + s.PendingWithdrawals
	return s, nil
}
