// Package pgstore persists engine state in PostgreSQL. A unit of work is one
// READ COMMITTED transaction; rows are serialised with SELECT ... FOR UPDATE
// under a bounded lock_timeout.
package pgstore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"

	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// Store is the PostgreSQL implementation of every engine repository.
type Store struct {
	db     postgresql.PostgreSQLClient
	txOpts postgresql.TxOptions
	clock  util.Clock
	logger logger.Interface
}

var _ txv1.Transactor = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock stamping wallet updates.
func WithClock(c util.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates a Store. lockTimeout bounds every row lock wait; a wait
// that runs out fails the unit with ConcurrencyConflict.
func NewStore(db postgresql.PostgreSQLClient, lockTimeout time.Duration, log logger.Interface, opts ...Option) *Store {
	s := &Store{
		db: db,
		txOpts: postgresql.TxOptions{
			TxOptions:   postgresql.ReadCommittedTxOptions(),
			LockTimeout: lockTimeout,
		},
		clock:  util.SystemClock,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs fn in a transaction, or inside the one ctx already carries.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgresql.WithTxOptions(ctx, s.db, s.txOpts, fn)
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

func (s *Store) requireTx(ctx context.Context, op string) error {
	if _, ok := postgresql.GetTx(ctx); !ok {
		return errors.New(errors.GeneralInternalServerError, "%s must run inside a unit of work", op)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// wrap classifies lock failures as ConcurrencyConflict and attaches a stack
// to everything else.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	classified := postgresql.ClassifyError(err)
	if errors.HasCode(classified, errors.ConcurrencyConflict) {
		return classified
	}
	return errors.TracerFromError(err)
}

func notFound(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
