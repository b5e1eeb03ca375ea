package support

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"go.uber.org/zap"
)

const (
	maxMessageRunes = 2000
	maxSubjectRunes = 200
	maxTitleRunes   = 200
	maxSlugRunes    = 120
	defaultCategory = "general"
	defaultPriority = "normal"

	senderUser  = "user"
	senderAdmin = "admin"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrTicketClosed     = errors.New("ticket is closed")
	ErrSubjectRequired  = errors.New("subject is required")
	ErrSubjectTooLong   = errors.New("subject is too long")
	ErrMessageRequired  = errors.New("message is required")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrArticleNotFound  = errors.New("article not found")
	ErrArticleTitle     = errors.New("article title is required")
	ErrArticleBody      = errors.New("article body is required")
	ErrArticleSlug      = errors.New("invalid article slug")
	ErrArticleSlugTaken = errors.New("article slug already exists")
)

var priorities = map[string]struct{}{
	"low": {}, "normal": {}, "high": {}, "urgent": {},
}

type Service struct {
	store store.Store
	now   func() time.Time
	log   *zap.Logger
}

func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }, log: log}
}

func normalizeMessage(raw string) (string, error) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", ErrMessageRequired
	}
	if len([]rune(msg)) > maxMessageRunes {
		return "", ErrMessageTooLong
	}
	return msg, nil
}

func normalizePriority(raw string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "" {
		return defaultPriority, nil
	}
	if _, ok := priorities[p]; !ok {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// normalizeStatus accepts "" and "all" as no filter.
func normalizeStatus(raw string) (types.TicketStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "all" {
		return "", nil
	}
	status, ok := types.ParseTicketStatus(s)
	if !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Slugify lower-cases s and collapses every run of non-alphanumerics into one dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

type Thread struct {
	Ticket   model.Ticket          `json:"ticket"`
	Messages []model.TicketMessage `json:"messages"`
}

type TicketInput struct {
	Subject  string
	Category string
	Priority string
	Message  string
}

// CreateTicket opens a ticket with its first user message.
func (s *Service) CreateTicket(ctx context.Context, userID int64, in TicketInput) (*Thread, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}
	if len([]rune(subject)) > maxSubjectRunes {
		return nil, ErrSubjectTooLong
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	body, err := normalizeMessage(in.Message)
	if err != nil {
		return nil, err
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = defaultCategory
	}

	thread := Thread{Ticket: model.Ticket{
		UserID:   userID,
		Subject:  subject,
		Category: category,
		Priority: priority,
		Status:   types.TicketStatusOpen,
	}}
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		if _, err := tx.CreateTicket(ctx, &thread.Ticket); err != nil {
			return err
		}
		msg := model.TicketMessage{TicketID: thread.Ticket.ID, SenderType: senderUser, SenderID: userID, Body: body}
		if _, err := tx.AddTicketMessage(ctx, &msg); err != nil {
			return err
		}
		thread.Messages = []model.TicketMessage{msg}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("support ticket opened", zap.Int64("ticket_id", thread.Ticket.ID), zap.Int64("user_id", userID))
	return &thread, nil
}

func (s *Service) UserTickets(ctx context.Context, userID int64, page store.Page) ([]model.Ticket, error) {
	return s.store.TicketsByUser(ctx, userID, page)
}

func (s *Service) thread(ctx context.Context, q store.Querier, id int64) (*Thread, error) {
	t, err := q.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	messages, err := q.TicketMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Thread{Ticket: *t, Messages: messages}, nil
}

// UserTicket returns the ticket only to its owner; anyone else sees ErrTicketNotFound.
func (s *Service) UserTicket(ctx context.Context, userID, id int64) (*Thread, error) {
	th, err := s.thread(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if th.Ticket.UserID != userID {
		return nil, ErrTicketNotFound
	}
	return th, nil
}

// UserReply appends a user message. An answered ticket goes back to open.
func (s *Service) UserReply(ctx context.Context, userID, id int64, raw string) (*model.TicketMessage, error) {
	body, err := normalizeMessage(raw)
	if err != nil {
		return nil, err
	}
	var msg model.TicketMessage
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		t, err := tx.TicketByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		if t.UserID != userID {
			return ErrTicketNotFound
		}
		if t.Status == types.TicketStatusClosed {
			return ErrTicketClosed
		}
		msg = model.TicketMessage{TicketID: id, SenderType: senderUser, SenderID: userID, Body: body}
		if _, err := tx.AddTicketMessage(ctx, &msg); err != nil {
			return err
		}
		return tx.SetTicketStatus(ctx, id, types.TicketStatusOpen, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) AdminTickets(ctx context.Context, rawStatus string, page store.Page) ([]model.Ticket, error) {
	status, err := normalizeStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, status, page)
}

func (s *Service) AdminTicket(ctx context.Context, id int64) (*Thread, error) {
	return s.thread(ctx, s.store, id)
}

// AdminReply appends an admin message and marks the ticket answered.
func (s *Service) AdminReply(ctx context.Context, adminID, id int64, raw string) (*model.TicketMessage, error) {
	body, err := normalizeMessage(raw)
	if err != nil {
		return nil, err
	}
	var msg model.TicketMessage
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		t, err := tx.TicketByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		if t.Status == types.TicketStatusClosed {
			return ErrTicketClosed
		}
		msg = model.TicketMessage{TicketID: id, SenderType: senderAdmin, SenderID: adminID, Body: body}
		if _, err := tx.AddTicketMessage(ctx, &msg); err != nil {
			return err
		}
		return tx.SetTicketStatus(ctx, id, types.TicketStatusAnswered, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) AdminSetStatus(ctx context.Context, id int64, raw string) (types.TicketStatus, error) {
	status, ok := types.ParseTicketStatus(raw)
	if !ok {
		return "", ErrInvalidStatus
	}
	if err := s.store.SetTicketStatus(ctx, id, status, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrTicketNotFound
		}
		return "", err
	}
	return status, nil
}

func (s *Service) Articles(ctx context.Context, page store.Page) ([]model.Article, error) {
	return s.store.ListArticles(ctx, true, page)
}

// Article returns a published article; drafts read as not found.
func (s *Service) Article(ctx context.Context, slug string) (*model.Article, error) {
	a, err := s.store.ArticleBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	if !a.Published {
		return nil, ErrArticleNotFound
	}
	return a, nil
}

type ArticleInput struct {
	Slug      string
	Title     string
	Body      string
	Category  string
	Published bool
}

func (s *Service) CreateArticle(ctx context.Context, in ArticleInput) (*model.Article, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len([]rune(title)) > maxTitleRunes {
		return nil, ErrArticleTitle
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, ErrArticleBody
	}
	slug := in.Slug
	if strings.TrimSpace(slug) == "" {
		slug = title
	}
	slug = Slugify(slug)
	if slug == "" || len([]rune(slug)) > maxSlugRunes {
		return nil, ErrArticleSlug
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = defaultCategory
	}
	a := model.Article{Slug: slug, Title: title, Body: body, Category: category, Published: in.Published}
	if _, err := s.store.CreateArticle(ctx, &a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrArticleSlugTaken
		}
		return nil, err
	}
	return &a, nil
}
