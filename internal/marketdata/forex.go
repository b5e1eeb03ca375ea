package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidCurrency = errors.New("invalid currency")

type Rates struct {
	Base      string                     `json:"base"`
	UpdatedAt int64                      `json:"updatedAt"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// RatesSource reads fiat exchange rates from an open.er-api.com compatible endpoint.
type RatesSource struct {
	baseURL string
	client  *http.Client
	policy  Policy
	log     *zap.Logger
}

func NewRatesSource(baseURL string, client *http.Client, policy Policy, log *zap.Logger) *RatesSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RatesSource{baseURL: baseURL, client: client, policy: policy, log: log}
}

func normalizeCurrency(raw string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return "USD", nil
	}
	if len(c) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return c, nil
}

type erAPIResponse struct {
	Result    string                     `json:"result"`
	BaseCode  string                     `json:"base_code"`
	UpdatedAt int64                      `json:"time_last_update_unix"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	ErrorType string                     `json:"error-type"`
}

func (s *RatesSource) Latest(ctx context.Context, base string) (Rates, error) {
	code, err := normalizeCurrency(base)
	if err != nil {
		return Rates{}, err
	}
	endpoint := s.baseURL + "/v6/latest/" + code

	var resp erAPIResponse
	err = retry(ctx, s.policy, s.log, "forex latest", func(ctx context.Context) error {
		resp = erAPIResponse{}
		if err := getJSON(ctx, s.client, endpoint, &resp); err != nil {
			return err
		}
		if resp.Result != "success" {
			return permanent(fmt.Errorf("forex upstream result %q (%s)", resp.Result, resp.ErrorType))
		}
		return nil
	})
	if err != nil {
		return Rates{}, err
	}
	return Rates{Base: resp.BaseCode, UpdatedAt: resp.UpdatedAt, Rates: resp.Rates}, nil
}
