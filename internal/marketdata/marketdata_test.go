package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wallex "github.com/wallexchange/wallex-go"
	"go.uber.org/zap"
)

var fastPolicy = Policy{Timeout: time.Second, Attempts: 3, Backoff: time.Millisecond}

const klines = `[
 [1700000000000,"100.5","110","99","105.25","12.5",1700003599999,"0",10,"0","0","0"],
 [1700003600000,"105.25","106","104","104.5","3",1700007199999,"0",4,"0","0","0"]
]`

func binanceServer(t *testing.T, hits *int32, failFirst int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(hits, 1)
		if n <= failFirst {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/api/v3/klines":
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			assert.Equal(t, "1h", r.URL.Query().Get("interval"))
			_, _ = w.Write([]byte(klines))
		case "/api/v3/ticker/24hr":
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"104.5","highPrice":"110","lowPrice":"99","volume":"15.5","closeTime":1700007199999}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBinanceCandlesReshapesArrays(t *testing.T) {
	var hits int32
	srv := binanceServer(t, &hits, 0)
	b := NewBinance(srv.URL, srv.Client(), fastPolicy, zap.NewNop())

	candles, err := b.Candles(context.Background(), "btc-usdt", "1h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.True(t, candles[0].Open.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, candles[0].Close.Equal(decimal.RequireFromString("105.25")))
	assert.True(t, candles[1].Volume.Equal(decimal.NewFromInt(3)))
}

func TestBinanceRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := binanceServer(t, &hits, 2)
	b := NewBinance(srv.URL, srv.Client(), fastPolicy, zap.NewNop())

	q, err := b.Quote(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.True(t, q.Price.Equal(decimal.RequireFromString("104.5")))
	assert.Equal(t, int64(1700007199), q.Timestamp)
}

func TestBinanceGivesUpAfterAttempts(t *testing.T) {
	var hits int32
	srv := binanceServer(t, &hits, 100)
	b := NewBinance(srv.URL, srv.Client(), fastPolicy, zap.NewNop())

	_, err := b.Quote(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	b := NewBinance(srv.URL, srv.Client(), fastPolicy, zap.NewNop())

	_, err := b.Candles(context.Background(), "NOPE", "1m", 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRetryTimeoutPerAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()
	b := NewBinance(srv.URL, srv.Client(), Policy{Timeout: 20 * time.Millisecond, Attempts: 2, Backoff: time.Millisecond}, zap.NewNop())

	start := time.Now()
	_, err := b.Quote(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHangingUpstreamAnswersBeforeWriteTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()
	policy := Policy{Timeout: 10 * time.Second, Attempts: 3, Backoff: 500 * time.Millisecond, Budget: 300 * time.Millisecond}
	b := NewBinance(upstream.URL, upstream.Client(), policy, zap.NewNop())
	h := NewHandler(NewRegistry(b), nil, nil, zap.NewNop())

	api := httptest.NewUnstartedServer(http.HandlerFunc(h.Quote))
	api.Config.WriteTimeout = time.Second
	api.Start()
	defer api.Close()

	start := time.Now()
	resp, err := api.Client().Get(api.URL + "/?symbol=BTCUSDT")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Failed to fetch market data", out["message"])
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseIntervalAndSymbol(t *testing.T) {
	i, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, Interval("1h"), i)
	i, err = ParseInterval(" 4H ")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, i.Duration())
	_, err = ParseInterval("7m")
	assert.ErrorIs(t, err, ErrInvalidInterval)

	s, err := normalizeSymbol("eth/usdt")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", s)
	_, err = normalizeSymbol("BTC&x=1")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

type fakeWallex struct {
	gotSymbol, gotResolution string
	from, to                 time.Time
	candles                  []*wallex.Candle
	err                      error
}

func (f *fakeWallex) Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error) {
	f.gotSymbol, f.gotResolution, f.from, f.to = symbol, resolution, from, to
	return f.candles, f.err
}

func (f *fakeWallex) Markets() ([]*wallex.Market, error) {
	return []*wallex.Market{{Symbol: "SHIBUSDT"}}, f.err
}

func TestWallexCandles(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeWallex{candles: []*wallex.Candle{
		{Timestamp: ts, Open: "1.5", High: "2", Low: "1", Close: "1.75", Volume: "300"},
		nil,
	}}
	src := newWallex(fake, fastPolicy, zap.NewNop())
	src.now = func() time.Time { return ts.Add(time.Hour) }

	out, err := src.Candles(context.Background(), "btc-usdt", "15m", 4)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", fake.gotSymbol)
	assert.Equal(t, "15", fake.gotResolution)
	assert.Equal(t, ts, fake.from)
	require.Len(t, out, 1)
	assert.Equal(t, ts.Unix(), out[0].Time)
	assert.True(t, out[0].Close.Equal(decimal.RequireFromString("1.75")))
}

func TestWallexUnknownMarket(t *testing.T) {
	src := newWallex(&fakeWallex{}, fastPolicy, zap.NewNop())
	_, err := src.Quote(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	src = newWallex(&fakeWallex{err: errors.New("boom")}, Policy{Attempts: 1}, zap.NewNop())
	_, err = src.Candles(context.Background(), "BTCUSDT", "1d", 1)
	assert.Error(t, err)
}

func TestRatesSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/latest/EUR" {
			_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"success","base_code":"EUR","time_last_update_unix":1700000000,"rates":{"USD":1.0842,"EUR":1}}`))
	}))
	defer srv.Close()
	src := NewRatesSource(srv.URL, srv.Client(), fastPolicy, zap.NewNop())

	rates, err := src.Latest(context.Background(), "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", rates.Base)
	assert.True(t, rates.Rates["USD"].Equal(decimal.RequireFromString("1.0842")))

	_, err = src.Latest(context.Background(), "XXX")
	assert.Error(t, err)
	_, err = src.Latest(context.Background(), "euro")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerResponses(t *testing.T) {
	var hits int32
	up := binanceServer(t, &hits, 0)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	good := NewHandler(NewRegistry(NewBinance(up.URL, up.Client(), fastPolicy, zap.NewNop())), nil, nil, zap.NewNop())
	bad := NewHandler(NewRegistry(NewBinance(down.URL, down.Client(), fastPolicy, zap.NewNop())),
		NewRatesSource(down.URL, down.Client(), fastPolicy, zap.NewNop()), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	good.Candles(rec, httptest.NewRequest(http.MethodGet, "/api/market/candles?symbol=BTCUSDT&interval=1h&limit=2", nil))
	out := decodeBody(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "binance", out["source"])
	assert.Len(t, out["candles"], 2)

	cases := []struct {
		name    string
		h       *Handler
		call    func(*Handler) http.HandlerFunc
		url     string
		message string
	}{
		{"upstream down", bad, func(h *Handler) http.HandlerFunc { return h.Quote }, "/?symbol=BTCUSDT", "Failed to fetch market data"},
		{"forex down", bad, func(h *Handler) http.HandlerFunc { return h.Forex }, "/?base=USD", "Failed to fetch market data"},
		{"unknown source", good, func(h *Handler) http.HandlerFunc { return h.Candles }, "/?source=kraken&symbol=BTCUSDT", "Unknown market data source"},
		{"bad interval", good, func(h *Handler) http.HandlerFunc { return h.Candles }, "/?symbol=BTCUSDT&interval=2h", "Invalid interval"},
		{"bad symbol", good, func(h *Handler) http.HandlerFunc { return h.Quote }, "/?symbol=", "Invalid symbol"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.call(tc.h)(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			out := decodeBody(t, rec)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.message, out["message"])
		})
	}
}

func TestQuoteWSStreams(t *testing.T) {
	var hits int32
	up := binanceServer(t, &hits, 0)
	reg := NewRegistry(NewBinance(up.URL, up.Client(), fastPolicy, zap.NewNop()))
	ws := NewQuoteWS(reg, "*", zap.NewNop())
	ws.interval = 10 * time.Millisecond
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?symbol=BTCUSDT", nil)
	require.NoError(t, err)
	defer conn.Close()
	for i := 0; i < 2; i++ {
		var msg quoteMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "quote", msg.Type)
		require.NotNil(t, msg.Quote)
		assert.Equal(t, "BTCUSDT", msg.Quote.Symbol)
	}
}

func TestAllowOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, allowOrigin(r, "*"))
	assert.True(t, allowOrigin(r, "https://other.example.com, https://APP.example.com"))
	assert.False(t, allowOrigin(r, "https://other.example.com"))
}
