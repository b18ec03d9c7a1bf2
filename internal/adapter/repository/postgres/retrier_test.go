package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashbook/internal/domain"
)

func fastPolicy(maxRetries uint64) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetrierRetriesWrappedLockErrors(t *testing.T) {
	r := NewRetrierWithPolicy(fastPolicy(3), zerolog.Nop())

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			// The engine wraps storage failures before they reach the retrier.
			return fmt.Errorf("%w: lock ledger: %w", domain.ErrStorage, &pgconn.PgError{Code: pgErrDeadlock})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := NewRetrier(zerolog.Nop())
	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		return domain.ErrEntryNotFound
	})

	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.Equal(t, 1, attempts)
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	r := NewRetrierWithPolicy(fastPolicy(2), zerolog.Nop())
	serialization := &pgconn.PgError{Code: pgErrSerializationFailure}

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		return serialization
	})

	assert.ErrorIs(t, err, serialization)
	assert.Equal(t, 3, attempts)
}

func TestRetrierHonoursCancelledContext(t *testing.T) {
	r := NewRetrierWithPolicy(fastPolicy(10), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := r.Retry(ctx, func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrLockNotAvailable}
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, true},
		{"serialization", &pgconn.PgError{Code: pgErrSerializationFailure}, true},
		{"lock not available", &pgconn.PgError{Code: pgErrLockNotAvailable}, true},
		{"statement timeout", &pgconn.PgError{Code: pgErrQueryCanceled}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}
