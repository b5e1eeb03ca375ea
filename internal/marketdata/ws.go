package marketdata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	quoteInterval = 2 * time.Second
	writeWait     = 10 * time.Second
)

type quoteMessage struct {
	Type    string `json:"type"`
	Quote   *Quote `json:"quote,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuoteWS streams one symbol's quote to a websocket client every tick.
type QuoteWS struct {
	sources  *Registry
	interval time.Duration
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewQuoteWS(sources *Registry, origin string, log *zap.Logger) *QuoteWS {
	return &QuoteWS{
		sources:  sources,
		interval: quoteInterval,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) }},
		log:      log,
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if reqOrigin == "" {
		return true
	}
	for _, o := range strings.Split(origin, ",") {
		if strings.EqualFold(reqOrigin, strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}

func (h *QuoteWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	src, err := h.sources.Get(r.URL.Query().Get("source"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	symbol, err := normalizeSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	// The server's ReadTimeout would otherwise end the stream.
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer cancel()
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		msg := quoteMessage{Type: "quote"}
		q, err := src.Quote(ctx, symbol)
		if err != nil {
			h.log.Warn("quote stream fetch failed", zap.String("source", src.Name()), zap.String("symbol", symbol), zap.Error(err))
			msg = quoteMessage{Type: "error", Message: "Failed to fetch market data"}
		} else {
			msg.Quote = &q
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}
