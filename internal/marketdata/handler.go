package marketdata

import (
	"errors"
	"net/http"
	"strconv"

	"swiftx/internal/httputil"

	"go.uber.org/zap"
)

type Handler struct {
	sources *Registry
	rates   *RatesSource
	WS      *QuoteWS
	log     *zap.Logger
}

func NewHandler(sources *Registry, rates *RatesSource, ws *QuoteWS, log *zap.Logger) *Handler {
	return &Handler{sources: sources, rates: rates, WS: ws, log: log}
}

// writeValidationError answers bad query parameters; anything else is an upstream failure.
func writeValidationError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, ErrUnknownSource):
		httputil.Fail(w, http.StatusOK, "Unknown market data source")
	case errors.Is(err, ErrInvalidInterval):
		httputil.Fail(w, http.StatusOK, "Invalid interval")
	case errors.Is(err, ErrInvalidCurrency):
		httputil.Fail(w, http.StatusOK, "Invalid currency")
	case errors.Is(err, ErrInvalidSymbol):
		httputil.Fail(w, http.StatusOK, "Invalid symbol")
	default:
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error, fields ...zap.Field) {
	if writeValidationError(w, err) {
		return
	}
	h.log.Error("market data fetch failed", append(fields, zap.Error(err))...)
	httputil.Fail(w, http.StatusOK, "Failed to fetch market data")
}

func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, httputil.Envelope{"sources": h.sources.Names()})
}

func (h *Handler) Candles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, err := h.sources.Get(q.Get("source"))
	if err != nil {
		h.fail(w, err)
		return
	}
	interval, err := ParseInterval(q.Get("interval"))
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	symbol := q.Get("symbol")
	candles, err := src.Candles(r.Context(), symbol, interval, limit)
	if err != nil {
		h.fail(w, err, zap.String("source", src.Name()), zap.String("symbol", symbol))
		return
	}
	httputil.Success(w, httputil.Envelope{
		"source":   src.Name(),
		"interval": interval,
		"candles":  candles,
	})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	src, err := h.sources.Get(r.URL.Query().Get("source"))
	if err != nil {
		h.fail(w, err)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	quote, err := src.Quote(r.Context(), symbol)
	if err != nil {
		h.fail(w, err, zap.String("source", src.Name()), zap.String("symbol", symbol))
		return
	}
	httputil.Success(w, httputil.Envelope{"quote": quote})
}

func (h *Handler) Forex(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	rates, err := h.rates.Latest(r.Context(), base)
	if err != nil {
		h.fail(w, err, zap.String("base", base))
		return
	}
	httputil.Success(w, httputil.Envelope{"base": rates.Base, "updatedAt": rates.UpdatedAt, "rates": rates.Rates})
}
