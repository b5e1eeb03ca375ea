package mysqlstore

import (
	"context"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

const ticketColumns = `id, user_id, subject, category, priority, status, created_at, updated_at`

func scanTicket(row scanner) (*model.Ticket, error) {
	var t model.Ticket
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	t.Status = types.TicketStatus(status)
	return &t, nil
}

func (q *queries) CreateTicket(ctx context.Context, t *model.Ticket) (int64, error) {
	t.CreatedAt = q.now()
	t.UpdatedAt = t.CreatedAt
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO support_tickets (user_id, subject, category, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Subject, t.Category, t.Priority, string(t.Status), t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

func (q *queries) TicketByID(ctx context.Context, id int64) (*model.Ticket, error) {
	return scanTicket(q.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = ?`, id))
}

func (q *queries) TicketsByUser(ctx context.Context, userID int64, page store.Page) ([]model.Ticket, error) {
	page = page.Normalize()
	return q.tickets(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`, userID, page.Limit, page.Offset)
}

func (q *queries) ListTickets(ctx context.Context, status types.TicketStatus, page store.Page) ([]model.Ticket, error) {
	page = page.Normalize()
	return q.tickets(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets WHERE (? = '' OR status = ?)
		ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`, string(status), string(status), page.Limit, page.Offset)
}

func (q *queries) tickets(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *queries) SetTicketStatus(ctx context.Context, id int64, status types.TicketStatus, at time.Time) error {
	return requireRow(q.db.ExecContext(ctx, `UPDATE support_tickets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), at.UTC(), id))
}

func (q *queries) AddTicketMessage(ctx context.Context, m *model.TicketMessage) (int64, error) {
	m.CreatedAt = q.now()
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO support_messages (ticket_id, sender_type, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.TicketID, m.SenderType, m.SenderID, m.Body, m.CreatedAt))
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

func (q *queries) TicketMessages(ctx context.Context, ticketID int64) ([]model.TicketMessage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, ticket_id, sender_type, sender_id, body, created_at
		FROM support_messages WHERE ticket_id = ? ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketMessage, 0)
	for rows.Next() {
		var m model.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderType, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const articleColumns = `id, slug, title, body, category, published, created_at, updated_at`

func scanArticle(row scanner) (*model.Article, error) {
	var a model.Article
	if err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Body, &a.Category, &a.Published, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (q *queries) CreateArticle(ctx context.Context, a *model.Article) (int64, error) {
	a.CreatedAt = q.now()
	a.UpdatedAt = a.CreatedAt
	id, err := insertID(q.db.ExecContext(ctx, `
		INSERT INTO kb_articles (slug, title, body, category, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Slug, a.Title, a.Body, a.Category, a.Published, a.CreatedAt, a.UpdatedAt))
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func (q *queries) ArticleBySlug(ctx context.Context, slug string) (*model.Article, error) {
	return scanArticle(q.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM kb_articles WHERE slug = ?`, slug))
}

func (q *queries) ListArticles(ctx context.Context, publishedOnly bool, page store.Page) ([]model.Article, error) {
	page = page.Normalize()
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM kb_articles WHERE (? = FALSE OR published = TRUE)
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, publishedOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
