package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

func (q *queries) CreateSession(_ context.Context, s *model.Session) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.sessions[s.ID]; ok {
		return fmt.Errorf("%w: sessions id", store.ErrDuplicate)
	}
	s.CreatedAt = q.now()
	st.sessions[s.ID] = *s
	return nil
}

func (q *queries) SessionByID(_ context.Context, id string) (*model.Session, error) {
	st, done := q.begin()
	defer done()
	s, ok := st.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (q *queries) UpdateSessionAccountType(_ context.Context, id string, accountType types.AccountType) error {
	st, done := q.begin()
	defer done()
	s, ok := st.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.AccountType = accountType
	st.sessions[id] = s
	return nil
}

func (q *queries) DeleteSession(_ context.Context, id string) error {
	st, done := q.begin()
	defer done()
	delete(st.sessions, id)
	return nil
}

func (q *queries) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	st, done := q.begin()
	defer done()
	var n int64
	for id, s := range st.sessions {
		if !s.ExpiresAt.After(now) {
			delete(st.sessions, id)
			n++
		}
	}
	return n, nil
}

func (q *queries) DeleteUserSessions(_ context.Context, userID int64) (int64, error) {
	st, done := q.begin()
	defer done()
	var n int64
	for id, s := range st.sessions {
		if s.UserID == userID {
			delete(st.sessions, id)
			n++
		}
	}
	return n, nil
}

func (q *queries) CreateTicket(_ context.Context, t *model.Ticket) (int64, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.users[t.UserID]; !ok {
		return 0, fmt.Errorf("support_tickets: user %d does not exist", t.UserID)
	}
	t.ID = st.next("support_tickets")
	t.CreatedAt = q.now()
	t.UpdatedAt = t.CreatedAt
	st.tickets[t.ID] = *t
	return t.ID, nil
}

func (q *queries) TicketByID(_ context.Context, id int64) (*model.Ticket, error) {
	st, done := q.begin()
	defer done()
	t, ok := st.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (q *queries) TicketsByUser(_ context.Context, userID int64, page store.Page) ([]model.Ticket, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedTickets(st, func(t model.Ticket) bool { return t.UserID == userID }), page), nil
}

func (q *queries) ListTickets(_ context.Context, status types.TicketStatus, page store.Page) ([]model.Ticket, error) {
	st, done := q.begin()
	defer done()
	return paginate(sortedTickets(st, func(t model.Ticket) bool { return status == "" || t.Status == status }), page), nil
}

// sortedTickets orders by updated_at DESC, id DESC.
func sortedTickets(st *state, keep func(model.Ticket) bool) []model.Ticket {
	out := make([]model.Ticket, 0)
	for _, t := range st.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	newestFirst(out, func(t model.Ticket) time.Time { return t.UpdatedAt }, func(t model.Ticket) int64 { return t.ID })
	return out
}

func (q *queries) SetTicketStatus(_ context.Context, id int64, status types.TicketStatus, at time.Time) error {
	st, done := q.begin()
	defer done()
	t, ok := st.tickets[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	st.tickets[id] = t
	return nil
}

func (q *queries) AddTicketMessage(_ context.Context, m *model.TicketMessage) (int64, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.tickets[m.TicketID]; !ok {
		return 0, fmt.Errorf("support_messages: ticket %d does not exist", m.TicketID)
	}
	m.ID = st.next("support_messages")
	m.CreatedAt = q.now()
	st.messages[m.ID] = *m
	return m.ID, nil
}

func (q *queries) TicketMessages(_ context.Context, ticketID int64) ([]model.TicketMessage, error) {
	st, done := q.begin()
	defer done()
	out := make([]model.TicketMessage, 0)
	for _, m := range st.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *queries) CreateArticle(_ context.Context, a *model.Article) (int64, error) {
	st, done := q.begin()
	defer done()
	for _, existing := range st.articles {
		if existing.Slug == a.Slug {
			return 0, fmt.Errorf("%w: kb_articles slug", store.ErrDuplicate)
		}
	}
	a.ID = st.next("kb_articles")
	a.CreatedAt = q.now()
	a.UpdatedAt = a.CreatedAt
	st.articles[a.ID] = *a
	return a.ID, nil
}

func (q *queries) ArticleBySlug(_ context.Context, slug string) (*model.Article, error) {
	st, done := q.begin()
	defer done()
	for _, a := range st.articles {
		if a.Slug == slug {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) ListArticles(_ context.Context, publishedOnly bool, page store.Page) ([]model.Article, error) {
	st, done := q.begin()
	defer done()
	out := make([]model.Article, 0)
	for _, a := range st.articles {
		if !publishedOnly || a.Published {
			out = append(out, a)
		}
	}
	newestFirst(out, func(a model.Article) time.Time { return a.CreatedAt }, func(a model.Article) int64 { return a.ID })
	return paginate(out, page), nil
}
