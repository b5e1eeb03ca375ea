package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxUpstreamBody = 4 << 20

// getJSON fetches url and decodes the body into dst. 4xx answers are permanent.
func getJSON(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upstream status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return permanent(err)
		}
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return permanent(fmt.Errorf("decode upstream body: %w", err))
	}
	return nil
}

type Binance struct {
	baseURL string
	client  *http.Client
	policy  Policy
	log     *zap.Logger
}

func NewBinance(baseURL string, client *http.Client, policy Policy, log *zap.Logger) *Binance {
	if client == nil {
		client = http.DefaultClient
	}
	return &Binance{baseURL: baseURL, client: client, policy: policy, log: log}
}

func (b *Binance) Name() string { return "binance" }

// parseKline turns one [openTimeMs, "open", "high", "low", "close", "volume", ...] row into a Candle.
func parseKline(row []json.RawMessage) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("kline has %d fields", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return Candle{}, fmt.Errorf("kline open time: %w", err)
	}
	c := Candle{Time: openMs / 1000}
	fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range fields {
		if err := dst.UnmarshalJSON(row[i+1]); err != nil {
			return Candle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
	}
	return c, nil
}

func (b *Binance) Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbol", sym)
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(normalizeLimit(limit)))
	endpoint := b.baseURL + "/api/v3/klines?" + q.Encode()

	var out []Candle
	err = retry(ctx, b.policy, b.log, "binance klines", func(ctx context.Context) error {
		var rows [][]json.RawMessage
		if err := getJSON(ctx, b.client, endpoint, &rows); err != nil {
			return err
		}
		candles := make([]Candle, 0, len(rows))
		for _, row := range rows {
			c, err := parseKline(row)
			if err != nil {
				return permanent(err)
			}
			candles = append(candles, c)
		}
		out = candles
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type binanceTicker struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	HighPrice decimal.Decimal `json:"highPrice"`
	LowPrice  decimal.Decimal `json:"lowPrice"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime int64           `json:"closeTime"`
}

func (b *Binance) Quote(ctx context.Context, symbol string) (Quote, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return Quote{}, err
	}
	endpoint := b.baseURL + "/api/v3/ticker/24hr?symbol=" + url.QueryEscape(sym)

	var t binanceTicker
	err = retry(ctx, b.policy, b.log, "binance ticker", func(ctx context.Context) error {
		return getJSON(ctx, b.client, endpoint, &t)
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Source:    b.Name(),
		Symbol:    sym,
		Price:     t.LastPrice,
		High24h:   t.HighPrice,
		Low24h:    t.LowPrice,
		Volume24h: t.Volume,
		Timestamp: t.CloseTime / 1000,
	}, nil
}
