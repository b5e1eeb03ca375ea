package auth

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"swiftx/internal/httputil"
	"swiftx/internal/model"
	"swiftx/internal/sessions"

	"go.uber.org/zap"
)

type Handler struct {
	svc      *Service
	sessions *sessions.Manager
	log      *zap.Logger
}

func NewHandler(svc *Service, sm *sessions.Manager, log *zap.Logger) *Handler {
	return &Handler{svc: svc, sessions: sm, log: log}
}

type registerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Country     string `json:"country"`
	AccountType string `json:"accountType"`
	Password    string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AccountType string `json:"accountType"`
}

// writeValidationError answers the user-facing failures; anything else is reported as
// fallback after logging.
func (h *Handler) writeValidationError(w http.ResponseWriter, err error, fallback string, fields ...zap.Field) {
	var tooLong *FieldTooLongError
	switch {
	case errors.Is(err, ErrMissingFields):
		httputil.Fail(w, http.StatusOK, "Please fill in all required fields")
	case errors.Is(err, ErrWeakPassword):
		httputil.Fail(w, http.StatusOK, "Password must be at least 6 characters")
	case errors.Is(err, ErrInvalidAccountType):
		httputil.Fail(w, http.StatusOK, "Invalid account type")
	case errors.Is(err, ErrAlreadyInUse):
		httputil.Fail(w, http.StatusOK, "Email or username already in use")
	case errors.Is(err, ErrInvalidRequest):
		httputil.Fail(w, http.StatusOK, "Invalid request")
	case errors.Is(err, ErrInvalidCode):
		httputil.Fail(w, http.StatusOK, "Invalid code")
	case errors.Is(err, ErrCodeExpired):
		httputil.Fail(w, http.StatusOK, "Verification code expired")
	case errors.Is(err, ErrInvalidCredentials):
		httputil.Fail(w, http.StatusOK, "Invalid email or password")
	case errors.Is(err, ErrSuspended):
		httputil.Fail(w, http.StatusOK, "Account suspended")
	case errors.Is(err, ErrNotAdmin):
		httputil.Fail(w, http.StatusOK, "Admin access required")
	case errors.Is(err, ErrWrongPassword):
		httputil.Fail(w, http.StatusOK, "Current password is incorrect")
	case errors.Is(err, ErrPasswordTooLong):
		httputil.Fail(w, http.StatusOK, "Password must be at most 72 bytes")
	case errors.As(err, &tooLong):
		httputil.Fail(w, http.StatusOK, fmt.Sprintf("%s must be at most %d characters", tooLong.Field, tooLong.Max))
	default:
		h.log.Error(fallback, append(fields, zap.Error(err))...)
		httputil.Fail(w, http.StatusOK, fallback)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	_, err := h.svc.Register(r.Context(), RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Email:       req.Email,
		Phone:       req.Phone,
		Country:     req.Country,
		AccountType: req.AccountType,
		Password:    req.Password,
	})
	if err != nil {
		h.writeValidationError(w, err, "Registration failed")
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Registered successfully. Please verify your email."})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		h.writeValidationError(w, err, "Verification failed")
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Email verified successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, false)
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, true)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, admin bool) {
	var req credentialsRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	login, message, redirect := h.svc.Login, "Login successful", "/dashboard.html"
	if admin {
		login, message, redirect = h.svc.AdminLogin, "Admin login successful", "/admin.html"
	}
	id, err := login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.writeValidationError(w, err, "Login failed")
		return
	}
	if _, _, err := h.sessions.Start(r.Context(), w, id.User.ID, id.AccountType, admin); err != nil {
		h.writeValidationError(w, err, "Login failed", zap.Int64("user_id", id.User.ID))
		return
	}
	httputil.Success(w, httputil.Envelope{
		"message":     message,
		"redirectUrl": redirect,
		"user": loginUser{
			ID:          id.User.ID,
			Email:       id.User.Email,
			FirstName:   id.User.FirstName,
			LastName:    id.User.LastName,
			AccountType: string(id.AccountType),
		},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, sess model.Session) {
	if err := h.sessions.Destroy(r.Context(), w, sess.ID); err != nil {
		h.writeValidationError(w, err, "Logout failed", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Logged out successfully"})
}

type profileView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request, sess model.Session) {
	u, err := h.svc.Profile(r.Context(), sess.UserID)
	if err != nil {
		h.writeValidationError(w, err, "Failed to fetch profile", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"user": profileView{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Country:   u.Country,
	}})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Country   string `json:"country"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	err := h.svc.UpdateProfile(r.Context(), sess.UserID, model.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Country:   req.Country,
	})
	if err != nil {
		h.writeValidationError(w, err, "Failed to update profile", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Profile updated successfully"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request, sess model.Session) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadJSON(w)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), sess.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeValidationError(w, err, "Failed to update password", zap.Int64("user_id", sess.UserID))
		return
	}
	httputil.Success(w, httputil.Envelope{"message": "Password updated successfully"})
}
