package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxBackoff = 10 * time.Second

// Policy bounds every upstream call. Budget caps the whole call including
// retries and must stay below the HTTP server's write timeout.
type Policy struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	Budget   time.Duration
}

const DefaultBudget = 12 * time.Second

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.Budget <= 0 {
		p.Budget = DefaultBudget
	}
	return p
}

// errPermanent marks upstream answers that retrying cannot fix (4xx, bad payload).
type errPermanent struct{ err error }

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return errPermanent{err: err}
}

// retry runs fn with a fresh per-attempt timeout, doubling the pause between
// attempts, and stops once the overall budget is spent.
func retry(ctx context.Context, p Policy, log *zap.Logger, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	ctx, cancelBudget := context.WithTimeout(ctx, p.Budget)
	defer cancelBudget()
	backoff := p.Backoff
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		var perm errPermanent
		if errors.As(err, &perm) || attempt == p.Attempts || ctx.Err() != nil {
			break
		}
		log.Warn("market data call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
