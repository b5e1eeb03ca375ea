package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"swiftx/internal/httputil"
	"swiftx/internal/model"
	"swiftx/internal/sessions"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SessionHandlerFunc is a handler that receives the caller's session explicitly.
type SessionHandlerFunc func(http.ResponseWriter, *http.Request, model.Session)

// bind adapts fn to net/http. It relies on RequireSession or RequireAdmin having run.
func bind(fn SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessions.FromContext(r.Context())
		if !ok {
			httputil.Fail(w, http.StatusUnauthorized, "Please log in first")
			return
		}
		fn(w, r, sess)
	}
}

func loadSession(sm *sessions.Manager, log *zap.Logger, w http.ResponseWriter, r *http.Request, denied string) (model.Session, bool) {
	sess, err := sm.Load(r)
	if err == nil {
		return sess, true
	}
	if errors.Is(err, sessions.ErrNoSession) {
		httputil.Fail(w, http.StatusUnauthorized, denied)
		return model.Session{}, false
	}
	log.Error("session lookup failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	httputil.Fail(w, http.StatusOK, "Session lookup failed")
	return model.Session{}, false
}

// RequireSession rejects requests without a valid session with 401.
func RequireSession(sm *sessions.Manager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := loadSession(sm, log, w, r, "Please log in first")
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(sessions.WithSession(r.Context(), sess)))
		})
	}
}

// RequireAdmin answers "Admin access required" both for a missing session (401) and for
// a session without the admin flag (200).
func RequireAdmin(sm *sessions.Manager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := loadSession(sm, log, w, r, "Admin access required")
			if !ok {
				return
			}
			if !sess.IsAdmin {
				httputil.Fail(w, http.StatusOK, "Admin access required")
				return
			}
			next.ServeHTTP(w, r.WithContext(sessions.WithSession(r.Context(), sess)))
		})
	}
}

func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote", r.RemoteAddr),
				}
				if status >= http.StatusInternalServerError {
					log.Warn("http request", fields...)
					return
				}
				log.Info("http request", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// CORS allows the configured origins with credentials. "*" answers any origin with a
// literal wildcard and no credentials, so session cookies never ride cross-site reads.
func CORS(origins string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	anyOrigin := false
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			anyOrigin = true
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allowed[strings.ToLower(origin)]
				switch {
				case ok && origin != "*":
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				case anyOrigin:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				if ok || anyOrigin {
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
