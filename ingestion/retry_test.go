package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDo(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	transient := core.ExternalServiceError("embedding", errors.New("timeout"))

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
		err := p.Do(ctx, logger, func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
		err := p.Do(ctx, logger, func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, core.ErrExternalService)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry validation errors", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
		err := p.Do(ctx, logger, func() error {
			calls++
			return core.ValidationError(core.ErrNoChunks, "")
		})
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, 1, calls)
	})

	t.Run("single attempt by default", func(t *testing.T) {
		calls := 0
		err := DefaultRetryPolicy().Do(ctx, logger, func() error {
			calls++
			return transient
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}.Do(cancelled, logger, func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
	assert.Equal(t, 500*time.Millisecond, p.delay(4))
	assert.Equal(t, 500*time.Millisecond, p.delay(9))
}

func TestRetryPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultRetryPolicy().Validate())
	assert.ErrorIs(t, RetryPolicy{MaxAttempts: 0}.Validate(), ErrInvalidRetryPolicy)
	assert.ErrorIs(t, RetryPolicy{MaxAttempts: 1, BaseDelay: -1}.Validate(), ErrInvalidRetryPolicy)
}
