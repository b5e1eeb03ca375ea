package pgstore

import (
	"context"

	"swiftx/internal/model"
	"swiftx/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, account_number, account_type, balance, currency, created_at`

func scanAccount(row pgx.Row) (*model.TradingAccount, error) {
	var a model.TradingAccount
	var accountType string
	if err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &accountType, &a.Balance, &a.Currency, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	a.AccountType = types.AccountType(accountType)
	return &a, nil
}

func (q *queries) InsertAccountIfAbsent(ctx context.Context, a *model.TradingAccount) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO trading_accounts (user_id, account_number, account_type, balance, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		a.UserID, a.AccountNumber, string(a.AccountType), a.Balance, a.Currency)
	return mapErr(err)
}

func (q *queries) AccountByType(ctx context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM trading_accounts WHERE user_id = $1 AND account_type = $2`,
		userID, string(accountType)))
}

func (q *queries) AccountsByUser(ctx context.Context, userID int64) ([]model.TradingAccount, error) {
	rows, err := q.db.Query(ctx, `SELECT `+accountColumns+` FROM trading_accounts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TradingAccount, 0, 2)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *queries) LatestAccountType(ctx context.Context, userID int64) (types.AccountType, error) {
	var t string
	err := q.db.QueryRow(ctx, `
		SELECT account_type FROM trading_accounts WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, userID).Scan(&t)
	if err != nil {
		return "", mapErr(err)
	}
	return types.AccountType(t), nil
}

func (q *queries) LockAccount(ctx context.Context, id int64) (*model.TradingAccount, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM trading_accounts WHERE id = $1 FOR UPDATE`, id))
}

func (q *queries) LockAccountByType(ctx context.Context, userID int64, accountType types.AccountType) (*model.TradingAccount, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM trading_accounts WHERE user_id = $1 AND account_type = $2 FOR UPDATE`,
		userID, string(accountType)))
}

func (q *queries) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	return requireRow(q.db.Exec(ctx, `UPDATE trading_accounts SET balance = balance + $2 WHERE id = $1`, id, delta))
}
