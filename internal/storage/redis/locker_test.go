package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl, nil), mr
}

func TestLocker_LockUnlock(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"owner-1"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"owner-1"))

	// Double unlock is harmless.
	unlock()
}

func TestLocker_WaitsForHolder(t *testing.T) {
	l, _ := setupLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "owner-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, "owner-1")
		if !assert.NoError(t, err) {
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while held")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestLocker_ContextCanceled(t *testing.T) {
	l, _ := setupLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "owner-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "owner-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_ExpiredLockNotReleasedByOldHolder(t *testing.T) {
	l, mr := setupLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Lock(ctx, "owner-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(ctx, "owner-1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists(keyPrefix+"owner-1"), "stale unlock removed the new holder's key")

	fresh()
	assert.False(t, mr.Exists(keyPrefix+"owner-1"))
}

func TestLocker_SerializesCriticalSection(t *testing.T) {
	l, _ := setupLocker(t, time.Minute)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "owner-1")
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load())
}

func TestLocker_Ping(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	require.NoError(t, l.Ping(context.Background()))

	mr.Close()
	require.Error(t, l.Ping(context.Background()))
}
