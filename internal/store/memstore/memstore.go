// Package memstore is an in-memory store.Store used by tests and by DB_DRIVER=memory.
// All operations are serialized by one mutex; WithTx works on a copy of the state that
// replaces the live state only when fn succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

type profile struct {
	id          int64
	userID      int64
	accountType types.AccountType
}

type loginFailure struct {
	attempts int
	last     time.Time
}

type state struct {
	seq           map[string]int64
	users         map[int64]model.User
	profiles      []profile
	accounts      map[int64]model.TradingAccount
	trades        map[int64]model.Trade
	deposits      map[int64]model.Deposit
	withdrawals   map[int64]model.Withdrawal
	sessions      map[string]model.Session
	loginFailures map[string]loginFailure
	tickets       map[int64]model.Ticket
	messages      map[int64]model.TicketMessage
	articles      map[int64]model.Article
}

func newState() *state {
	return &state{
		seq:           map[string]int64{},
		users:         map[int64]model.User{},
		accounts:      map[int64]model.TradingAccount{},
		trades:        map[int64]model.Trade{},
		deposits:      map[int64]model.Deposit{},
		withdrawals:   map[int64]model.Withdrawal{},
		sessions:      map[string]model.Session{},
		loginFailures: map[string]loginFailure{},
		tickets:       map[int64]model.Ticket{},
		messages:      map[int64]model.TicketMessage{},
		articles:      map[int64]model.Article{},
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:           cloneMap(s.seq),
		users:         cloneMap(s.users),
		profiles:      append([]profile(nil), s.profiles...),
		accounts:      cloneMap(s.accounts),
		trades:        cloneMap(s.trades),
		deposits:      cloneMap(s.deposits),
		withdrawals:   cloneMap(s.withdrawals),
		sessions:      cloneMap(s.sessions),
		loginFailures: cloneMap(s.loginFailures),
		tickets:       cloneMap(s.tickets),
		messages:      cloneMap(s.messages),
		articles:      cloneMap(s.articles),
	}
}

type Store struct {
	*queries
	mu    sync.Mutex
	st    *state
	clock func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState(), clock: func() time.Time { return time.Now().UTC() }}
	s.queries = &queries{s: s}
	return s
}

// SetClock replaces the time source used for created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = now
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&queries{s: s, tx: snapshot}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

// LoginFailures reports the unknown-email failure counter.
func (s *Store) LoginFailures(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.loginFailures[email].attempts
}

// RowCounts reports per-table row counts.
func (s *Store) RowCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"users":            len(s.st.users),
		"user_profiles":    len(s.st.profiles),
		"trading_accounts": len(s.st.accounts),
		"trades":           len(s.st.trades),
		"deposits":         len(s.st.deposits),
		"withdrawals":      len(s.st.withdrawals),
		"sessions":         len(s.st.sessions),
		"support_tickets":  len(s.st.tickets),
		"support_messages": len(s.st.messages),
		"kb_articles":      len(s.st.articles),
	}
}

type queries struct {
	s  *Store
	tx *state
}

// begin returns the state to operate on and the matching release func. Inside WithTx the
// store mutex is already held.
func (q *queries) begin() (*state, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.s.mu.Lock()
	return q.s.st, q.s.mu.Unlock
}

func (q *queries) now() time.Time {
	return q.s.clock()
}

func paginate[T any](items []T, page store.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return make([]T, 0)
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-page.Offset)
	copy(out, items[page.Offset:end])
	return out
}

// newestFirst orders by created_at DESC, id DESC.
func newestFirst[T any](items []T, created func(T) time.Time, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) > id(items[j])
	})
}
