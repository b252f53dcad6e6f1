package redis

import (
	"context"
	"testing"
	"time"

	"github.com/NordCoder/Alertus/internal/channel"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestInbox_PushKeepsNewestFirstAndCaps(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()
	in := NewInbox(c, 2)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, in.Push(ctx, 9, channel.InboxItem{AlertID: i, Title: "t"}))
	}

	got, err := in.Recent(ctx, 9, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(3), got[0].AlertID)
	require.Equal(t, int64(2), got[1].AlertID)

	empty, err := in.Recent(ctx, 10, 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestLock_ExclusiveAndOwned(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(c, "reminder-sweep", time.Minute)
	b := NewLock(c, "reminder-sweep", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// b does not own the lock, so its release is a no-op.
	require.NoError(t, b.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(c, "sweep", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewLock(c, "sweep", time.Second).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLock_ExtendRenewsOnlyOwnedLease(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(c, "sweep", 10*time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(8 * time.Second)
	ok, err = a.Extend(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(8 * time.Second)
	ok, err = NewLock(c, "sweep", 10*time.Second).Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok, "renewed lease must still be held")

	mr.FastForward(3 * time.Second)
	ok, err = a.Extend(ctx)
	require.NoError(t, err)
	require.False(t, ok, "expired lease cannot be renewed")
}
