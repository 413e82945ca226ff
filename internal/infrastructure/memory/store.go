// Package memory keeps engine state in process. A single unit of work runs at
// a time; every mutation made inside a unit registers an undo step that is
// replayed when the unit fails.
package memory

import (
	"context"
	"sync"
	"time"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

type unitKey struct{}

type unit struct {
	undo []func()
}

func (u *unit) onRollback(fn func()) {
	u.undo = append(u.undo, fn)
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func unitFrom(ctx context.Context) (*unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*unit)
	return u, ok
}

// Store holds every table of the engine in maps.
type Store struct {
	mu          sync.RWMutex
	sem         chan struct{}
	lockTimeout time.Duration

	orders       map[string]*orderv1.Order
	orderSeq     int64
	reservations map[string]*reservationv1.Reservation
	resByOrder   map[string]string
	wallets      map[ledgerv1.WalletKey]*ledgerv1.Wallet
	trades       []*tradev1.Trade
	transactions []*tradev1.Transaction
	events       []*eventv1.Event
	eventIndex   map[string]int
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long Do waits for the running unit to finish.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock sets the clock used for wallet timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sem:          make(chan struct{}, 1),
		lockTimeout:  3 * time.Second,
		orders:       make(map[string]*orderv1.Order),
		reservations: make(map[string]*reservationv1.Reservation),
		resByOrder:   make(map[string]string),
		wallets:      make(map[ledgerv1.WalletKey]*ledgerv1.Wallet),
		eventIndex:   make(map[string]int),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ txv1.Transactor = (*Store)(nil)

// Do runs fn as one unit of work. Waiting longer than the lock timeout, or
// ctx ending first, fails with ConcurrencyConflict.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := unitFrom(ctx); ok {
		return fn(ctx)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-s.sem }()

	u := &unit{}
	defer func() {
		if p := recover(); p != nil {
			s.mu.Lock()
			u.rollback()
			s.mu.Unlock()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		s.mu.Lock()
		u.rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return errors.New(errors.ConcurrencyConflict, "timed out after %s waiting for lock", s.lockTimeout)
	case <-ctx.Done():
		return errors.New(errors.ConcurrencyConflict, "gave up waiting for lock").WithCause(ctx.Err())
	}
}

// write runs mutate under the write lock within the unit carried by ctx,
// opening one when there is none.
func (s *Store) write(ctx context.Context, mutate func(u *unit) error) error {
	u, ok := unitFrom(ctx)
	if !ok {
		return s.Do(ctx, func(ctx context.Context) error {
			return s.write(ctx, mutate)
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return mutate(u)
}

func (s *Store) requireUnit(ctx context.Context, op string) error {
	if _, ok := unitFrom(ctx); !ok {
		return errors.New(errors.GeneralInternalServerError, "%s must run inside a unit of work", op)
	}
	return nil
}

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Reservations returns the fund reservation repository.
func (s *Store) Reservations() *ReservationRepository { return &ReservationRepository{s: s} }

// Ledger returns the wallet ledger.
func (s *Store) Ledger() *Ledger { return &Ledger{s: s} }

// Trades returns the trade repository.
func (s *Store) Trades() *TradeRepository { return &TradeRepository{s: s} }

// Transactions returns the ledger history repository.
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }

// Outbox returns the event outbox.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

// Wallets returns a copy of every wallet. Tests use it to check conservation.
func (s *Store) Wallets() []*ledgerv1.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ledgerv1.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		c := *w
		out = append(out, &c)
	}
	return out
}
