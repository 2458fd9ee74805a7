package batch

import "sync"

// Gate is a semaphore whose capacity can be changed while holders are in
// flight. A fixed-size channel cannot do that, which is why this is built on
// sync.Cond: shrinking takes effect as holders release, growing wakes
// waiters immediately. In-flight holders are never revoked.
type Gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	inUse    int
}

// NewGate creates a gate with the given initial capacity (minimum 1).
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	g := &Gate{capacity: capacity}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Acquire blocks until a slot is free.
func (g *Gate) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.inUse >= g.capacity {
		g.cond.Wait()
	}
	g.inUse++
}

// Release frees a slot.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inUse--
	g.cond.Broadcast()
}

// Resize sets a new capacity and wakes waiters if it grew.
func (g *Gate) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capacity = capacity
	g.cond.Broadcast()
}

// InUse returns the number of held slots.
func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}
