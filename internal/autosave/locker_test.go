package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKey_String(t *testing.T) {
	id := uuid.MustParse("6f1c2d4e-8a9b-4c3d-9e2f-1a2b3c4d5e6f")
	key := EntityKey{Kind: "business_information", ApplicationID: id}
	assert.Equal(t, "business_information:6f1c2d4e-8a9b-4c3d-9e2f-1a2b3c4d5e6f", key.String())
}

// assertMutualExclusion runs workers concurrently on one key and checks that
// no two ever hold the lock together.
func assertMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "entity")
			require.NoError(t, err)
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	assertMutualExclusion(t, locker)
	assert.Zero(t, locker.size())
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), "entity")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "entity")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Zero(t, locker.size())
}

func TestLocalLocker_KeysAreIndependent(t *testing.T) {
	locker := NewLocalLocker()
	releaseA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Second), mr
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	locker, mr := newRedisLocker(t)
	assertMutualExclusion(t, locker)
	assert.False(t, mr.Exists("bpls:save-lock:entity"))
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	locker, mr := newRedisLocker(t)

	release, err := locker.Lock(context.Background(), "entity")
	require.NoError(t, err)
	assert.True(t, mr.Exists("bpls:save-lock:entity"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "entity")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := locker.Lock(context.Background(), "entity")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ReleaseDoesNotDropForeignLock(t *testing.T) {
	locker, mr := newRedisLocker(t)

	release, err := locker.Lock(context.Background(), "entity")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("bpls:save-lock:entity", "someone-else"))
	release()

	value, err := mr.Get("bpls:save-lock:entity")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	locker, mr := newRedisLocker(t)
	mr.Close()

	_, err := locker.Lock(context.Background(), "entity")
	assert.Error(t, err)
}
