package server

import (
	"context"
	"sync"
)

// Throttle bounds how many inbound messages are processed concurrently
// across all connections. It is a counting permit pool backed by a buffered
// channel; goroutines blocked on a full pool are queued by the runtime in
// FIFO order.
type Throttle struct {
	permits chan struct{}
}

// NewThrottle creates a pool of n permits. n=1 forces fully sequential
// message processing.
func NewThrottle(n int) *Throttle {
	if n < 1 {
		n = 1
	}
	return &Throttle{permits: make(chan struct{}, n)}
}

// Acquire blocks until a permit is available or ctx is done. A Permit is
// created only after a successful acquisition, so a cancelled wait has
// nothing to release and the pool can never be over-released.
func (t *Throttle) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case t.permits <- struct{}{}:
		return &Permit{pool: t}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cap returns the configured pool size.
func (t *Throttle) Cap() int {
	return cap(t.permits)
}

// Available returns how many permits are currently free.
func (t *Throttle) Available() int {
	return cap(t.permits) - len(t.permits)
}

// Permit is one acquired slot in the pool. Release returns it; additional
// Release calls are no-ops.
type Permit struct {
	pool *Throttle
	once sync.Once
}

// Release returns the permit to the pool exactly once.
func (p *Permit) Release() {
	p.once.Do(func() {
		<-p.pool.permits
	})
}
