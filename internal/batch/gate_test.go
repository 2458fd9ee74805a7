package batch_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"battery_project/internal/batch"
)

func TestGateLimitsConcurrency(t *testing.T) {
	g := batch.NewGate(3)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Acquire()
			defer g.Release()

			cur := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("peak concurrency %d exceeded capacity 3", p)
	}
}

func TestGateResizeWakesWaiters(t *testing.T) {
	g := batch.NewGate(1)
	g.Acquire()

	acquired := make(chan struct{})
	go func() {
		g.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block at capacity 1")
	case <-time.After(20 * time.Millisecond):
	}

	g.Resize(2)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("resize did not wake the waiter")
	}

	g.Release()
	g.Release()
	if g.InUse() != 0 {
		t.Errorf("in use = %d, want 0", g.InUse())
	}
}

func TestGateShrinkDoesNotRevoke(t *testing.T) {
	g := batch.NewGate(3)
	g.Acquire()
	g.Acquire()
	g.Acquire()

	// Shrinking below current usage only delays future acquires.
	g.Resize(1)
	if g.InUse() != 3 {
		t.Errorf("in use = %d, want 3 (holders keep slots)", g.InUse())
	}

	g.Release()
	g.Release()
	g.Release()
}
