package api

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCoordinatorTryAcquire(t *testing.T) {
	c := NewRefreshCoordinator()
	assert.False(t, c.Locked())
	assert.Equal(t, uint64(0), c.Generation())

	require.True(t, c.TryAcquire())
	assert.True(t, c.Locked())
	assert.False(t, c.TryAcquire())
	assert.Equal(t, uint64(1), c.Generation())

	c.Release()
	assert.False(t, c.Locked())
}

func TestCoordinatorTryAcquireAtStaleGeneration(t *testing.T) {
	c := NewRefreshCoordinator()
	gen := c.Generation()

	require.True(t, c.TryAcquire())
	c.Release()

	// A refresh ran after gen was read: the caller must not start another.
	assert.False(t, c.TryAcquireAt(gen))
	assert.True(t, c.TryAcquireAt(c.Generation()))
	c.Release()
}

func TestCoordinatorReleaseUnlockedPanics(t *testing.T) {
	assert.Panics(t, func() { NewRefreshCoordinator().Release() })
}

func TestCoordinatorWaitForUnlock(t *testing.T) {
	c := NewRefreshCoordinator()
	require.NoError(t, c.WaitForUnlock(context.Background()))

	require.True(t, c.TryAcquire())

	var released atomic.Bool
	g, ctx := errgroup.WithContext(context.Background())
	for range 5 {
		g.Go(func() error {
			if err := c.WaitForUnlock(ctx); err != nil {
				return err
			}
			assert.True(t, released.Load())
			return nil
		})
	}

	time.Sleep(20 * time.Millisecond)
	released.Store(true)
	c.Release()
	require.NoError(t, g.Wait())

	// Waiting does not take the gate.
	assert.False(t, c.Locked())
}

func TestCoordinatorWaitHonorsContext(t *testing.T) {
	c := NewRefreshCoordinator()
	require.True(t, c.TryAcquire())
	defer c.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitForUnlock(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, c.Acquire(ctx), context.DeadlineExceeded)
}

func TestCoordinatorAcquireSerializes(t *testing.T) {
	c := NewRefreshCoordinator()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.Acquire(context.Background()))
			defer c.Release()
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, uint64(10), c.Generation())
}

func TestCoordinatorWaitIdleSkipsInFlightGeneration(t *testing.T) {
	c := NewRefreshCoordinator()
	gen, err := c.WaitIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gen)

	require.True(t, c.TryAcquire())
	got := make(chan uint64, 1)
	go func() {
		gen, err := c.WaitIdle(context.Background())
		assert.NoError(t, err)
		got <- gen
	}()

	select {
	case <-got:
		t.Fatal("WaitIdle returned while a refresh was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	c.Release()

	gen = <-got
	assert.Equal(t, uint64(1), gen)
	// The generation came from after the refresh, so a stale 401 seen now
	// may start exactly one new refresh.
	require.True(t, c.TryAcquireAt(gen))
	c.Release()
}

func TestCoordinatorWaitIdleHonorsContext(t *testing.T) {
	c := NewRefreshCoordinator()
	require.True(t, c.TryAcquire())
	defer c.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.WaitIdle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
