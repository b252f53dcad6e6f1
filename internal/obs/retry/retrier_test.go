package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedBackoff time.Duration

func (f fixedBackoff) Next(int) time.Duration { return time.Duration(f) }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, Policy{Name: "test_ok", Attempts: 5, Backoff: fixedBackoff(time.Millisecond)})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	exhausted := false
	err := Do(context.Background(), func() error {
		calls++
		return permanent
	}, Policy{
		Name:      "test_perm",
		Attempts:  5,
		Backoff:   fixedBackoff(time.Millisecond),
		Retryable: func(err error) bool { return !errors.Is(err, permanent) },
		OnExhaust: func(error) { exhausted = true },
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
	require.True(t, exhausted)
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, func() error {
		cancel()
		return errors.New("boom")
	}, Policy{Name: "test_cancel", Attempts: 3, Backoff: fixedBackoff(time.Hour)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitter_CapsAtMax(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}
	require.Equal(t, 100*time.Millisecond, b.Next(0))
	require.Equal(t, 400*time.Millisecond, b.Next(2))
	require.Equal(t, time.Second, b.Next(10))
}

func TestDo_PermanentStopsWithoutCustomRetryable(t *testing.T) {
	calls := 0
	cause := errors.New("mailbox unavailable")
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(cause)
	}, Policy{Name: "test_permanent", Attempts: 4})
	require.ErrorIs(t, err, cause)
	require.True(t, IsPermanent(err))
	require.Equal(t, 1, calls)
}

func TestDo_NilBackoffRetriesImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("still down")
	}, Policy{Name: "test_nil_backoff", Attempts: 3})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestPermanent_Nil(t *testing.T) {
	require.NoError(t, Permanent(nil))
	require.False(t, IsPermanent(errors.New("x")))
}
