package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

// Querier is the subset of pgx shared by pools, connections and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Conn returns the transaction bound to ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// WithTx returns a context carrying tx.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// TxFromContext retrieves the transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// TxRunner executes fn atomically. Implementations join a transaction that
// is already bound to ctx instead of opening a nested one.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Unique constraints whose violation means a concurrent writer won the race
// rather than a caller error.
var raceConstraints = map[string]bool{
	"queue_item_number_key":  true,
	"queue_item_one_serving": true,
	"queue_counter_pkey":     true,
}

// PgTxRunner runs work in SERIALIZABLE transactions and retries on
// serialization failures and deadlocks.
type PgTxRunner struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
	logger     zerolog.Logger
}

func NewTxRunner(pool *pgxpool.Pool, maxRetries int, logger zerolog.Logger) *PgTxRunner {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &PgTxRunner{pool: pool, maxRetries: maxRetries, backoff: 15 * time.Millisecond, logger: logger}
}

func (r *PgTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return retry(ctx, r.maxRetries, r.backoff, r.logger, func(ctx context.Context) error {
		return r.runOnce(ctx, fn)
	})
}

// retry calls attempt until it succeeds, fails with a non-retryable error or
// runs out of attempts. Exhaustion surfaces as a ConcurrencyError.
func retry(ctx context.Context, maxAttempts int, backoff time.Duration, logger zerolog.Logger, attempt func(ctx context.Context) error) error {
	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		logger.Debug().Err(err).Int("attempt", n).Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(n) * backoff):
		}
	}
	return apperrors.NewConcurrencyError("concurrent update conflict, retry the request", lastErr)
}

func (r *PgTxRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsRetryable reports whether err is a serialization failure, a deadlock or
// a unique violation on one of the queue race constraints.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return raceConstraints[pgErr.ConstraintName]
	}
	return false
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
