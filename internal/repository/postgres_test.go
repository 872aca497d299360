package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgError(code string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "test"})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		wantNot []error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: ErrNotFound},
		{name: "unique violation", err: pgError(pgerrcode.UniqueViolation), want: ErrConflict, wantNot: []error{ErrUnavailable}},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: ErrUnavailable},
		{name: "context canceled", err: context.Canceled, want: context.Canceled, wantNot: []error{ErrUnavailable}},
		{name: "other pg error", err: pgError(pgerrcode.CheckViolation), wantNot: []error{ErrConflict, ErrNotFound, ErrUnavailable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("insert order", tt.err)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "insert order")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			for _, not := range tt.wantNot {
				assert.NotErrorIs(t, err, not)
			}
		})
	}

	// Исходная ошибка драйвера остаётся доступной.
	var pgErr *pgconn.PgError
	require.ErrorAs(t, classify("insert order", pgError(pgerrcode.UniqueViolation)), &pgErr)
	assert.Equal(t, pgerrcode.UniqueViolation, pgErr.Code)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: pgError(pgerrcode.SerializationFailure), want: true},
		{name: "deadlock", err: pgError(pgerrcode.DeadlockDetected), want: true},
		{name: "unique violation", err: pgError(pgerrcode.UniqueViolation), want: false},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{0, 0}}
	ctx := context.Background()

	calls := 0
	err := r.withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return pgError(pgerrcode.SerializationFailure)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return pgError(pgerrcode.DeadlockDetected)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return classify("insert order", pgError(pgerrcode.UniqueViolation))
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, calls)
}
