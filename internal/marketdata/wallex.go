package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	wallex "github.com/wallexchange/wallex-go"
	"go.uber.org/zap"
)

var wallexResolutions = map[Interval]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "1D",
}

// wallexAPI is the subset of *wallex.Client the source needs.
type wallexAPI interface {
	Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error)
	Markets() ([]*wallex.Market, error)
}

type Wallex struct {
	client wallexAPI
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

func NewWallex(apiKey string, policy Policy, log *zap.Logger) *Wallex {
	return newWallex(wallex.New(wallex.ClientOptions{APIKey: apiKey}), policy, log)
}

func newWallex(client wallexAPI, policy Policy, log *zap.Logger) *Wallex {
	return &Wallex{client: client, policy: policy, now: time.Now, log: log}
}

func (w *Wallex) Name() string { return "wallex" }

// call runs a context-less SDK call and gives up when ctx ends. The SDK goroutine finishes on its own.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func decimalOf(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (w *Wallex) Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	resolution, ok := wallexResolutions[interval]
	if !ok {
		return nil, ErrInvalidInterval
	}
	limit = normalizeLimit(limit)
	end := w.now().UTC()
	start := end.Add(-interval.Duration() * time.Duration(limit))

	var rows []*wallex.Candle
	err = retry(ctx, w.policy, w.log, "wallex candles", func(ctx context.Context) error {
		var err error
		rows, err = call(ctx, func() ([]*wallex.Candle, error) {
			return w.client.Candles(sym, resolution, start, end)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]Candle, 0, len(rows))
	for _, wc := range rows {
		if wc == nil {
			continue
		}
		out = append(out, Candle{
			Time:   wc.Timestamp.UTC().Unix(),
			Open:   decimalOf(string(wc.Open)),
			High:   decimalOf(string(wc.High)),
			Low:    decimalOf(string(wc.Low)),
			Close:  decimalOf(string(wc.Close)),
			Volume: decimalOf(string(wc.Volume)),
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (w *Wallex) Quote(ctx context.Context, symbol string) (Quote, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return Quote{}, err
	}
	var markets []*wallex.Market
	err = retry(ctx, w.policy, w.log, "wallex markets", func(ctx context.Context) error {
		var err error
		markets, err = call(ctx, w.client.Markets)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	for _, m := range markets {
		if m == nil || m.Symbol != sym {
			continue
		}
		return Quote{
			Source:    w.Name(),
			Symbol:    sym,
			Price:     decimalOf(string(m.Stats.LastPrice)),
			High24h:   decimalOf(string(m.Stats.HighPrice24H)),
			Low24h:    decimalOf(string(m.Stats.LowPrice24H)),
			Volume24h: decimalOf(string(m.Stats.Volume24H)),
			Timestamp: w.now().UTC().Unix(),
		}, nil
	}
	return Quote{}, fmt.Errorf("wallex market %s: %w", sym, ErrInvalidSymbol)
}
