package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/store/memstore"
	"swiftx/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *memstore.Store, int64, int64) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	alice, err := st.CreateUser(ctx, &model.User{Username: "alice", Email: "alice@example.com", Role: types.RoleUser})
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, &model.User{Username: "bob", Email: "bob@example.com", Role: types.RoleUser})
	require.NoError(t, err)
	return NewService(st, zap.NewNop()), st, alice, bob
}

func TestCreateTicketWritesFirstMessage(t *testing.T) {
	svc, st, alice, _ := newTestService(t)
	th, err := svc.CreateTicket(context.Background(), alice, TicketInput{Subject: " Card declined ", Message: "Help"})
	require.NoError(t, err)

	assert.Equal(t, "Card declined", th.Ticket.Subject)
	assert.Equal(t, "general", th.Ticket.Category)
	assert.Equal(t, "normal", th.Ticket.Priority)
	assert.Equal(t, types.TicketStatusOpen, th.Ticket.Status)
	require.Len(t, th.Messages, 1)
	assert.Equal(t, "user", th.Messages[0].SenderType)
	assert.Equal(t, 1, st.RowCounts()["support_messages"])
}

func TestCreateTicketValidation(t *testing.T) {
	svc, st, alice, _ := newTestService(t)
	cases := []struct {
		name string
		in   TicketInput
		want error
	}{
		{"no subject", TicketInput{Message: "x"}, ErrSubjectRequired},
		{"no message", TicketInput{Subject: "x", Message: "   "}, ErrMessageRequired},
		{"long message", TicketInput{Subject: "x", Message: strings.Repeat("é", maxMessageRunes+1)}, ErrMessageTooLong},
		{"bad priority", TicketInput{Subject: "x", Message: "y", Priority: "asap"}, ErrInvalidPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTicket(context.Background(), alice, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, st.RowCounts()["support_tickets"])

	_, err := svc.CreateTicket(context.Background(), alice, TicketInput{Subject: "x", Message: strings.Repeat("é", maxMessageRunes)})
	assert.NoError(t, err)
}

func TestTicketOwnershipAndReplyFlow(t *testing.T) {
	svc, _, alice, bob := newTestService(t)
	ctx := context.Background()
	th, err := svc.CreateTicket(ctx, alice, TicketInput{Subject: "Withdrawal", Message: "Where is it?"})
	require.NoError(t, err)
	id := th.Ticket.ID

	_, err = svc.UserTicket(ctx, bob, id)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	_, err = svc.UserReply(ctx, bob, id, "me too")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = svc.AdminReply(ctx, 42, id, "Processing")
	require.NoError(t, err)
	got, err := svc.UserTicket(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, types.TicketStatusAnswered, got.Ticket.Status)

	_, err = svc.UserReply(ctx, alice, id, "Thanks, still waiting")
	require.NoError(t, err)
	got, err = svc.UserTicket(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, types.TicketStatusOpen, got.Ticket.Status)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, []string{"user", "admin", "user"}, []string{
		got.Messages[0].SenderType, got.Messages[1].SenderType, got.Messages[2].SenderType,
	})

	_, err = svc.AdminSetStatus(ctx, id, "closed")
	require.NoError(t, err)
	_, err = svc.UserReply(ctx, alice, id, "hello?")
	assert.ErrorIs(t, err, ErrTicketClosed)
	_, err = svc.AdminSetStatus(ctx, id, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.AdminSetStatus(ctx, 999, "open")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestAdminTicketsFilter(t *testing.T) {
	svc, _, alice, bob := newTestService(t)
	ctx := context.Background()
	a, err := svc.CreateTicket(ctx, alice, TicketInput{Subject: "a", Message: "a"})
	require.NoError(t, err)
	_, err = svc.CreateTicket(ctx, bob, TicketInput{Subject: "b", Message: "b"})
	require.NoError(t, err)
	_, err = svc.AdminReply(ctx, 1, a.Ticket.ID, "done")
	require.NoError(t, err)

	all, err := svc.AdminTickets(ctx, "all", store.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	open, err := svc.AdminTickets(ctx, "open", store.Page{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, bob, open[0].UserID)
	_, err = svc.AdminTickets(ctx, "stale", store.Page{})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"How to Deposit?":       "how-to-deposit",
		"  --Fees & Limits--  ": "fees-limits",
		"2FA setup":             "2fa-setup",
		"!!!":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestArticles(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	pub, err := svc.CreateArticle(ctx, ArticleInput{Title: "How to Deposit", Body: "Use the deposit page.", Published: true})
	require.NoError(t, err)
	assert.Equal(t, "how-to-deposit", pub.Slug)
	_, err = svc.CreateArticle(ctx, ArticleInput{Slug: "draft", Title: "Draft", Body: "wip"})
	require.NoError(t, err)

	_, err = svc.CreateArticle(ctx, ArticleInput{Title: "How to deposit!", Body: "dup"})
	assert.ErrorIs(t, err, ErrArticleSlugTaken)
	_, err = svc.CreateArticle(ctx, ArticleInput{Title: "", Body: "x"})
	assert.ErrorIs(t, err, ErrArticleTitle)

	list, err := svc.Articles(ctx, store.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "how-to-deposit", list[0].Slug)

	_, err = svc.Article(ctx, "draft")
	assert.ErrorIs(t, err, ErrArticleNotFound)
	got, err := svc.Article(ctx, "HOW-TO-DEPOSIT")
	require.NoError(t, err)
	assert.Equal(t, pub.ID, got.ID)
}

func TestHandlerGetTicketForeignOwner(t *testing.T) {
	svc, _, alice, bob := newTestService(t)
	_, err := svc.CreateTicket(context.Background(), alice, TicketInput{Subject: "a", Message: "a"})
	require.NoError(t, err)
	h := NewHandler(svc, zap.NewNop())

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "1")
	req := httptest.NewRequest(http.MethodGet, "/api/support/tickets/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.GetTicket(rec, req, model.Session{UserID: bob})
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Ticket not found", out["message"])

	rec = httptest.NewRecorder()
	h.GetTicket(rec, req, model.Session{UserID: alice})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["messages"], 1)
}
