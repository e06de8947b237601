package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fast(WithAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorWhenAttemptsRunOut(t *testing.T) {
	calls := 0
	err := fast(WithAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast(WithAttempts(5)).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_ContextErrorsNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := fast(WithAttempts(5)).Do(context.Background(), func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfAndOnRetry(t *testing.T) {
	var retried []int
	calls := 0
	r := fast(
		WithAttempts(3),
		WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }),
		WithOnRetry(func(attempt int, _ error, d time.Duration) {
			assert.Equal(t, time.Duration(attempt)*time.Millisecond, d)
			retried = append(retried, attempt)
		}),
	)

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := New().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelDuringWaitReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(WithInitialDelay(time.Hour), WithOnRetry(func(int, error, time.Duration) { cancel() }))

	err := r.Do(ctx, func(context.Context) error { return errFlaky })
	assert.Equal(t, errFlaky, err)
}

func TestDoWithData(t *testing.T) {
	r := StorageRetrier(3, WithInitialDelay(time.Millisecond))

	calls := 0
	data, err := DoWithData(context.Background(), r, func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errFlaky
		}
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 2, calls)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1, 0.5))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2, 0.5))
	assert.Equal(t, 300*time.Millisecond, b.Delay(3, 0.5))
	assert.Equal(t, 300*time.Millisecond, b.Delay(10, 0.5))

	b.Jitter = 0.1
	assert.InDelta(t, float64(90*time.Millisecond), float64(b.Delay(1, 0)), float64(time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(b.Delay(1, 0.5)), float64(time.Microsecond))
}
