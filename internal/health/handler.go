package health

import (
	"context"
	"net/http"
	"time"

	"swiftx/internal/httputil"

	"go.uber.org/zap"
)

const pingTimeout = time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db        Pinger
	driver    string
	startedAt time.Time
	now       func() time.Time
	log       *zap.Logger
}

func NewHandler(db Pinger, driver string, startedAt time.Time, log *zap.Logger) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{db: db, driver: driver, startedAt: start, now: time.Now, log: log}
}

type databaseStatus struct {
	Driver    string `json:"driver"`
	Reachable bool   `json:"reachable"`
	PingMs    int64  `json:"ping_ms"`
}

type response struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	UptimeSec int64          `json:"uptime_sec"`
	Database  databaseStatus `json:"database"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

// Live reports the process is up without touching the database.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  now.Format(time.RFC3339),
		"uptime_sec": int64(h.uptime(now).Seconds()),
	})
}

// Get pings the store and answers 503 when it is unreachable.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	db := databaseStatus{Driver: h.driver}
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	err := h.db.Ping(ctx)
	cancel()
	db.PingMs = time.Since(start).Milliseconds()

	status, code := "ok", http.StatusOK
	if err != nil {
		h.log.Warn("health check: database unreachable", zap.String("driver", h.driver), zap.Error(err))
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		db.Reachable = true
	}
	now := h.now().UTC()
	httputil.WriteJSON(w, code, response{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(h.uptime(now).Seconds()),
		Database:  db,
	})
}
