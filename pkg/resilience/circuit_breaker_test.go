package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	states []int
	trips  int
}

func (o *recordingObserver) SetCircuitBreakerState(name string, state int) {
	o.states = append(o.states, state)
}

func (o *recordingObserver) RecordCircuitBreakerTrip(name string) {
	o.trips++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("order-service")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	obs := &recordingObserver{}
	cb := NewCircuitBreaker(cfg, testLogger(), obs)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 1, obs.trips)

	_, err := cb.Execute(context.Background(), func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_PassesThroughResult(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("x"), testLogger(), nil)

	res, err := cb.Execute(context.Background(), func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, "x", cb.Name())
}

func TestRetryWithResult(t *testing.T) {
	transient := errors.New("transient")
	cfg := &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: func(err error) bool { return errors.Is(err, transient) },
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		v, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
			calls++
			if calls < 3 {
				return "", transient
			}
			return "done", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		fatal := errors.New("fatal")
		calls := 0
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, fatal
		})
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			return 0, transient
		})
		assert.ErrorIs(t, err, transient)
		assert.Contains(t, err.Error(), "max retries (3)")
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig(nil)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.False(t, cfg.RetryableErrors(errors.New("anything")))

	transient := errors.New("transient")
	cfg = DefaultRetryConfig(func(err error) bool { return errors.Is(err, transient) })
	assert.True(t, cfg.RetryableErrors(transient))
}
