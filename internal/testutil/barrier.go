package testutil

import "sync"

// Barrier holds the first n callers of Wait until all n have arrived.
// Later callers pass straight through.
type Barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	open    chan struct{}
}

// NewBarrier returns a barrier for n callers.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: n, open: make(chan struct{})}
}

// Wait blocks until n callers have arrived. It reports whether the caller
// was one of the first n.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	b.arrived++
	first := b.arrived <= b.n
	if b.arrived == b.n {
		close(b.open)
	}
	b.mu.Unlock()

	if first {
		<-b.open
	}
	return first
}
