// Package marketdata proxies third-party crypto and forex price feeds. Nothing is cached;
// every request goes upstream under a timeout and a bounded retry.
package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var (
	ErrUnknownSource   = errors.New("unknown market data source")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidSymbol   = errors.New("invalid symbol")
)

// Candle is one OHLCV bar; Time is the bar open in unix seconds.
type Candle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

type Quote struct {
	Source    string          `json:"source"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
	Volume24h decimal.Decimal `json:"volume24h"`
	Timestamp int64           `json:"ts"`
}

// Source is one upstream exchange.
type Source interface {
	Name() string
	Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Interval is a candle width in the "1m"/"1h"/"1d" notation.
type Interval string

var intervals = map[Interval]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

func ParseInterval(v string) (Interval, error) {
	s := Interval(strings.ToLower(strings.TrimSpace(v)))
	if s == "" {
		return "1h", nil
	}
	if _, ok := intervals[s]; !ok {
		return "", ErrInvalidInterval
	}
	return s, nil
}

func (i Interval) Duration() time.Duration {
	return intervals[i]
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// normalizeSymbol upper-cases and strips separators: "btc-usdt" and "BTC/USDT" both become "BTCUSDT".
func normalizeSymbol(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '/' || r == '_':
		default:
			return "", ErrInvalidSymbol
		}
	}
	if b.Len() < 2 || b.Len() > 20 {
		return "", ErrInvalidSymbol
	}
	return b.String(), nil
}

// Registry resolves sources by name; the first registered one is the default.
type Registry struct {
	order   []string
	sources map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if s == nil {
			continue
		}
		r.order = append(r.order, s.Name())
		r.sources[s.Name()] = s
	}
	return r
}

func (r *Registry) Get(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" && len(r.order) > 0 {
		name = r.order[0]
	}
	s, ok := r.sources[name]
	if !ok {
		return nil, ErrUnknownSource
	}
	return s, nil
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
