package session

import (
	"context"
	"sync"
	"time"
)

// DefaultWaitTimeout bounds how long a batch waits for a racing open.
const DefaultWaitTimeout = 1000 * time.Millisecond

// Gate is a counting one-shot signal. Each Signal lets exactly one Wait pass,
// whether that Wait is already blocked or arrives later.
type Gate struct {
	mu      sync.Mutex
	permits int
	ready   chan struct{}
}

func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// Signal adds one permit and wakes any blocked waiters so one can take it.
func (g *Gate) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.permits++
	close(g.ready)
	g.ready = make(chan struct{})
}

// Wait consumes a permit, blocking up to timeout for one to arrive. It returns
// false on timeout or when ctx is done.
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		g.mu.Lock()
		if g.permits > 0 {
			g.permits--
			g.mu.Unlock()
			return true
		}
		ready := g.ready
		g.mu.Unlock()

		if expired == nil {
			return false
		}

		select {
		case <-ready:
		case <-expired:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Pending returns the number of unconsumed signals.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.permits
}
