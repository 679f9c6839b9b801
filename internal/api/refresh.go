package api

import (
	"context"
	"sync"
)

// RefreshCoordinator is a mutual-exclusion gate around session refreshes.
//
// The holder performs the refresh and must Release in a deferred call.
// Everyone else waits for the holder to finish with WaitForUnlock and then
// proceeds as if the refresh happened. The generation counter advances on
// every acquisition, so a request can tell whether a refresh started after
// it was issued.
type RefreshCoordinator struct {
	mu     sync.Mutex
	locked bool
	done   chan struct{} // closed on Release
	gen    uint64
}

// NewRefreshCoordinator returns an unlocked coordinator.
func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{}
}

// Acquire blocks until the gate is free and takes it.
func (c *RefreshCoordinator) Acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.locked {
			c.lock()
			c.mu.Unlock()
			return nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryAcquire takes the gate if it is free.
func (c *RefreshCoordinator) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return false
	}
	c.lock()
	return true
}

// TryAcquireAt takes the gate only if it is free and no acquisition has
// happened since gen was read from Generation.
func (c *RefreshCoordinator) TryAcquireAt(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked || c.gen != gen {
		return false
	}
	c.lock()
	return true
}

// lock must be called with mu held.
func (c *RefreshCoordinator) lock() {
	c.locked = true
	c.done = make(chan struct{})
	c.gen++
}

// Release frees the gate and wakes every waiter. Releasing an unlocked
// coordinator panics, like sync.Mutex.
func (c *RefreshCoordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.locked {
		panic("api: Release of unlocked RefreshCoordinator")
	}
	c.locked = false
	close(c.done)
	c.done = nil
}

// WaitForUnlock returns once no refresh is in flight. It does not take the gate.
func (c *RefreshCoordinator) WaitForUnlock(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle waits until no refresh is in flight and returns the generation
// observed in the same critical section that saw the gate free.
func (c *RefreshCoordinator) WaitIdle(ctx context.Context) (uint64, error) {
	for {
		c.mu.Lock()
		if !c.locked {
			gen := c.gen
			c.mu.Unlock()
			return gen, nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Locked reports whether a refresh is in flight.
func (c *RefreshCoordinator) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Generation returns the number of acquisitions so far.
func (c *RefreshCoordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
