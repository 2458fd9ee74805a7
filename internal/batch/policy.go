package batch

import "sync"

// Default AIMD bounds for in-flight extraction calls.
const (
	DefaultStartConcurrency = 5
	DefaultMinConcurrency   = 2
	DefaultMaxConcurrency   = 15
)

// AIMDPolicy adjusts the concurrency limit with an additive-increase /
// multiplicative-decrease heuristic: +1 on every success up to the ceiling,
// halved on every failure down to the floor. The extraction service is an
// external, possibly rate-limited dependency, so this behaves like a small
// congestion controller. Kept separate from the worker pool so the policy is
// testable without any I/O.
type AIMDPolicy struct {
	mu    sync.Mutex
	limit int
	min   int
	max   int
}

// NewAIMDPolicy creates a policy clamped to [min, max], starting at start.
func NewAIMDPolicy(start, min, max int) *AIMDPolicy {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if start < min {
		start = min
	}
	if start > max {
		start = max
	}
	return &AIMDPolicy{limit: start, min: min, max: max}
}

// OnSuccess raises the limit by one (capped) and returns the new limit.
func (p *AIMDPolicy) OnSuccess() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit < p.max {
		p.limit++
	}
	return p.limit
}

// OnFailure halves the limit (floored) and returns the new limit.
func (p *AIMDPolicy) OnFailure() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit /= 2
	if p.limit < p.min {
		p.limit = p.min
	}
	return p.limit
}

// Limit returns the current concurrency limit.
func (p *AIMDPolicy) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}
