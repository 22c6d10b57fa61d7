package dbretry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"constraint", errors.New("duplicate key value violates unique constraint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestOperation(t *testing.T) {
	initialInterval = time.Millisecond
	maxInterval = 2 * time.Millisecond

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		got, err := Operation(t.Context(), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("connection reset by peer")
			}

			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		sentinel := errors.New("syntax error")
		calls := 0

		err := NoResult(t.Context(), func(context.Context) error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0

		err := NoResult(t.Context(), func(context.Context) error {
			calls++
			return errors.New("i/o timeout")
		})
		require.Error(t, err)
		assert.Equal(t, int(maxRetries)+1, calls)
	})
}
