package mysqlstore

import (
	"context"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

const tradeColumns = `id, user_id, account_id, asset, COALESCE(asset_name, ''), quantity, price, total_amount,
	trade_type, status, created_at`

func scanTrade(row scanner) (*model.Trade, error) {
	var t model.Trade
	var tradeType, status string
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Asset, &t.AssetName, &t.Quantity, &t.Price,
		&t.TotalAmount, &tradeType, &status, &t.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	t.TradeType = types.TradeType(tradeType)
	t.Status = types.RequestStatus(status)
	return &t, nil
}

func (q *queries) InsertTrade(ctx context.Context, t *model.Trade) (int64, error) {
	t.CreatedAt = q.now()
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO trades (user_id, account_id, asset, asset_name, quantity, price, total_amount, trade_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, t.Asset, nullIfEmpty(t.AssetName), t.Quantity, t.Price, t.TotalAmount,
		string(t.TradeType), string(t.Status), t.CreatedAt))
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

func (q *queries) TradesByUser(ctx context.Context, userID int64, page store.Page) ([]model.Trade, error) {
	page = page.Normalize()
	return q.trades(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, page.Limit, page.Offset)
}

func (q *queries) ListTrades(ctx context.Context, page store.Page) ([]model.Trade, error) {
	page = page.Normalize()
	return q.trades(ctx, `
		SELECT `+tradeColumns+` FROM trades ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
}

func (q *queries) trades(ctx context.Context, query string, args ...any) ([]model.Trade, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
