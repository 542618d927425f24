package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-tutoring-be/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Base: time.Millisecond, Cap: 5 * time.Millisecond}
}

func TestDoRetriesTransientUpToCap(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperr.Transient("flaky", errors.New("timeout"))
	}, apperr.IsRetryable)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoSucceedsWithinCap(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperr.Adapter("tutor timed out", errors.New("timeout"))
		}
		return nil
	}, apperr.IsRetryable)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryLogicErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", apperr.Validation("bad input")},
		{"conflict", apperr.Conflict("sequence taken")},
		{"invalid state", apperr.InvalidState("session ended")},
		{"not found", apperr.NotFound("gone")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			}, apperr.IsRetryable)

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 10, Base: 50 * time.Millisecond, Cap: time.Second}.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return apperr.Transient("flaky", errors.New("timeout"))
	}, apperr.IsRetryable)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
