package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSameKeySerializes(t *testing.T) {
	l := New()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), 7)
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len(), "idle keys should be released")
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	l := New()

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	other, err := l.Lock(ctx, 2)
	require.NoError(t, err, "key 2 must not wait on key 1")
	other()
}

func TestLockCancelledWhileWaiting(t *testing.T) {
	l := New()

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, l.Len())

	again, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	again()
}

func TestUnlockIsIdempotent(t *testing.T) {
	var l Locker

	unlock, err := l.Lock(context.Background(), 3)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Equal(t, 0, l.Len())
}
