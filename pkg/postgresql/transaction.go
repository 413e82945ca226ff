package postgresql

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

type contextKey string

const txKey contextKey = "postgresql_transaction"

// SQLSTATE codes that mean the unit lost a race rather than hit a bug.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
)

// GetTx extracts transaction from context
func GetTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// ContextWithTx embeds tx into ctx so client calls made with the returned
// context run inside it.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxOptions configures WithTxOptions.
type TxOptions struct {
	pgx.TxOptions
	// LockTimeout bounds every row lock wait inside the transaction. Zero keeps
	// the server default.
	LockTimeout time.Duration
}

// WithTx executes a function within a transaction with automatic rollback on error
func WithTx(ctx context.Context, db PostgreSQLClient, fn func(ctx context.Context) error) error {
	return WithTxOptions(ctx, db, TxOptions{}, fn)
}

// WithTxOptions executes fn within a transaction. When ctx already carries a
// transaction fn joins it and the outer caller owns commit and rollback.
func WithTxOptions(ctx context.Context, db PostgreSQLClient, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, opts.TxOptions)
	if err != nil {
		return ClassifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	txCtx := ContextWithTx(ctx, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if opts.LockTimeout > 0 {
		if _, err = tx.Exec(txCtx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.LockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return ClassifyError(err)
		}
	}

	if err = fn(txCtx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !stderrors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", ClassifyError(err), rbErr)
		}
		return ClassifyError(err)
	}

	if err = tx.Commit(txCtx); err != nil {
		return ClassifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// ClassifyError maps lock timeouts, deadlocks and serialization failures to
// ConcurrencyConflict and leaves every other error untouched.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.ConcurrencyConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable, sqlStateQueryCanceled:
			return errors.New(errors.ConcurrencyConflict, "concurrent update conflict (%s)", pgErr.Code).WithCause(err)
		}
	}
	return err
}

// ReadCommittedTxOptions is the isolation used by settlement units; row locks
// taken with SELECT ... FOR UPDATE provide the serialisation.
func ReadCommittedTxOptions() pgx.TxOptions {
	return pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}
}

// ReadOnlyTxOptions returns transaction options for read-only transactions
func ReadOnlyTxOptions() pgx.TxOptions {
	return pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadOnly,
	}
}
