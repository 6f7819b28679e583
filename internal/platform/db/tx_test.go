package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40001"}), true},
		{"queue number race", &pgconn.PgError{Code: "23505", ConstraintName: "queue_item_number_key"}, true},
		{"serving race", &pgconn.PgError{Code: "23505", ConstraintName: "queue_item_one_serving"}, true},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "staff_email_key"}, false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("boom"), false},
		{"no rows", pgx.ErrNoRows, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to be detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("expected plain error not to be ErrNoRows")
	}
}

func TestRetry_SucceedsAfterConflict(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, zerolog.Nop(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestRetry_ExhaustedIsConcurrencyError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, zerolog.Nop(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	if !apperrors.IsConcurrency(err) {
		t.Fatalf("expected concurrency error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "40P01" {
		t.Errorf("expected last driver error to be wrapped, got %v", err)
	}
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := retry(context.Background(), 5, time.Millisecond, zerolog.Nop(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := retry(ctx, 5, time.Hour, zerolog.Nop(), func(context.Context) error {
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
