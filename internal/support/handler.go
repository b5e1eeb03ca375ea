package support

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"swiftx/internal/httputil"
	"swiftx/internal/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func parseTicketID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTicketNotFound
	}
	return id, nil
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error, fallback string, fields ...zap.Field) {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		httputil.Fail(w, http.StatusOK, "Ticket not found")
	case errors.Is(err, ErrTicketClosed):
		httputil.Fail(w, http.StatusOK, "Ticket is closed")
	case errors.Is(err, ErrSubjectRequired), errors.Is(err, ErrMessageRequired):
		httputil.Fail(w, http.StatusOK, "Subject and message are required")
	case errors.Is(err, ErrSubjectTooLong):
		httputil.Fail(w, http.StatusOK, fmt.Sprintf("Subject must be at most %d characters", maxSubjectRunes))
	case errors.Is(err, ErrMessageTooLong):
		httputil.Fail(w, http.StatusOK, fmt.Sprintf("Message must be at most %d characters", maxMessageRunes))
	case errors.Is(err, ErrInvalidPriority):
		httputil.Fail(w, http.StatusOK, "Invalid priority")
	case errors.Is(err, ErrInvalidStatus):
		httputil.Fail(w, http.StatusOK, "Invalid status")
	case errors.Is(err, ErrArticleNotFound):
		httputil.Fail(w, http.StatusOK, "Article not found")
	case errors.Is(err, ErrArticleTitle), errors.Is(err, ErrArticleBody):
		httputil.Fail(w, http.StatusOK, "Title and body are required")
	case errors.Is(err, ErrArticleSlug):
		httputil.Fail(w, http.StatusOK, "Invalid slug")
	case errors.Is(err, ErrArticleSlugTaken):
		httputil.Fail(w, http.StatusOK, "Slug already exists")
	default:
		h.log.Error(fallback, append(fields, zap.Error(err))...)
		httputil.Fail(w, http.StatusOK, fallback)
	}
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		Subject  string `json:"subject"`
		Category string `json:"category"`
		Priority string `json:"priority"`
		Message  string `json:"message"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	thread, err := h.svc.CreateTicket(r.Context(), sess.UserID, TicketInput{
		Subject:  req.Subject,
		Category: req.Category,
		Priority: req.Priority,
		Message:  req.Message,
	})
	if err != nil {
		h.writeValidationError(w, err, "Failed to create ticket", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":  "Ticket created",
		"ticket":   thread.Ticket,
		"messages": thread.Messages,
	})
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request, sess model.Session) {
	tickets, err := h.svc.UserTickets(r.Context(), sess.UserID, httputil.Page(r))
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch tickets", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"tickets": tickets})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request, sess model.Session) {
	id, err := parseTicketID(r)
	if err != nil {
		h.writeValidationError(w, err, "")
		return
	}
	thread, err := h.svc.UserTicket(r.Context(), sess.UserID, id)
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch ticket", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"ticket": thread.Ticket, "messages": thread.Messages})
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request, sess model.Session) {
	id, err := parseTicketID(r)
	if err != nil {
		h.writeValidationError(w, err, "")
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	msg, err := h.svc.UserReply(r.Context(), sess.UserID, id, req.Message)
	if err != nil {
		h.writeValidationError(w, err, "Failed to send message", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Message sent", "ticketMessage": msg})
}

func (h *Handler) AdminListTickets(w http.ResponseWriter, r *http.Request, sess model.Session) {
	tickets, err := h.svc.AdminTickets(r.Context(), r.URL.Query().Get("status"), httputil.Page(r))
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch tickets", zap.Int64("admin_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"tickets": tickets})
}

func (h *Handler) AdminGetTicket(w http.ResponseWriter, r *http.Request, sess model.Session) {
	id, err := parseTicketID(r)
	if err != nil {
		h.writeValidationError(w, err, "")
		return
	}
	thread, err := h.svc.AdminTicket(r.Context(), id)
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch ticket", zap.Int64("admin_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"ticket": thread.Ticket, "messages": thread.Messages})
}

func (h *Handler) AdminReply(w http.ResponseWriter, r *http.Request, sess model.Session) {
	id, err := parseTicketID(r)
	if err != nil {
		h.writeValidationError(w, err, "")
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	msg, err := h.svc.AdminReply(r.Context(), sess.UserID, id, req.Message)
	if err != nil {
		h.writeValidationError(w, err, "Failed to send reply", zap.Int64("admin_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Reply sent", "ticketMessage": msg})
}

func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request, sess model.Session) {
	id, err := parseTicketID(r)
	if err != nil {
		h.writeValidationError(w, err, "")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	status, err := h.svc.AdminSetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeValidationError(w, err, "Failed to update ticket", zap.Int64("admin_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Ticket updated", "status": status})
}

func (h *Handler) AdminCreateArticle(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		Slug      string `json:"slug"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		Category  string `json:"category"`
		Published bool   `json:"published"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	a, err := h.svc.CreateArticle(r.Context(), ArticleInput{
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		Category:  req.Category,
		Published: req.Published,
	})
	if err != nil {
		h.writeValidationError(w, err, "Failed to create article", zap.Int64("admin_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Article created", "article": a})
}

func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.svc.Articles(r.Context(), httputil.Page(r))
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch articles")
		return
	}
	httputil.Success(w, httputil.Envelope{"articles": articles})
}

func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Article(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch article")
		return
	}
	httputil.Success(w, httputil.Envelope{"article": a})
}
