// Package sessions binds requests to persisted sessions. The cookie (or bearer token)
// carries an HS256 token whose jti is the session row id; the row holds the user id,
// active account type and admin flag.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const issuer = "swiftx"

var ErrNoSession = errors.New("no valid session")

type Options struct {
	Secret     []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   string
}

type Manager struct {
	store      store.SessionStore
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	sameSite   http.SameSite
	now        func() time.Time
	log        *zap.Logger
}

func NewManager(st store.SessionStore, opts Options, log *zap.Logger) *Manager {
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = "swiftx_session"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		store:      st,
		secret:     opts.Secret,
		cookieName: name,
		ttl:        ttl,
		secure:     opts.Secure,
		sameSite:   parseSameSite(opts.SameSite),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Start persists a new session and sets the cookie. The returned token is also usable as
// an Authorization bearer.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, userID int64, accountType types.AccountType, isAdmin bool) (model.Session, string, error) {
	now := m.now()
	sess := model.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountType: accountType,
		IsAdmin:     isAdmin,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, &sess); err != nil {
		return model.Session{}, "", fmt.Errorf("create session: %w", err)
	}
	token, err := m.sign(sess, now)
	if err != nil {
		return model.Session{}, "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
	return sess, token, nil
}

func (m *Manager) sign(sess model.Session, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Issuer:    issuer,
		Subject:   strconv.FormatInt(sess.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// tokensFrom lists the cookie token and then the bearer token, whichever are present.
func (m *Manager) tokensFrom(r *http.Request) []string {
	var out []string
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if t := strings.TrimSpace(auth[7:]); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Load resolves the request's session. A cookie that does not resolve falls through to
// the bearer token. Any failure other than a storage error is ErrNoSession.
func (m *Manager) Load(r *http.Request) (model.Session, error) {
	for _, token := range m.tokensFrom(r) {
		sess, err := m.resolve(r.Context(), token)
		if errors.Is(err, ErrNoSession) {
			continue
		}
		return sess, err
	}
	return model.Session{}, ErrNoSession
}

func (m *Manager) resolve(ctx context.Context, token string) (model.Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return model.Session{}, ErrNoSession
	}
	sess, err := m.store.SessionByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Session{}, ErrNoSession
		}
		return model.Session{}, err
	}
	if strconv.FormatInt(sess.UserID, 10) != claims.Subject || !sess.ExpiresAt.After(m.now()) {
		return model.Session{}, ErrNoSession
	}
	return *sess, nil
}

func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, id string) error {
	m.clearCookie(w)
	if id == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, id)
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
}

func (m *Manager) SetAccountType(ctx context.Context, id string, accountType types.AccountType) error {
	return m.store.UpdateSessionAccountType(ctx, id, accountType)
}

// RunJanitor deletes expired sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.store.DeleteExpiredSessions(ctx, m.now())
			if err != nil {
				m.log.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.log.Debug("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

type ctxKey struct{}

func WithSession(ctx context.Context, sess model.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

func FromContext(ctx context.Context) (model.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(model.Session)
	return sess, ok
}
