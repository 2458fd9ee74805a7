package batch_test

import (
	"testing"

	"battery_project/internal/batch"
)

func TestAIMDPolicyAdaptation(t *testing.T) {
	p := batch.NewAIMDPolicy(5, 2, 15)

	// Successes strictly increase until the ceiling, then hold.
	prev := p.Limit()
	for i := 0; i < 20; i++ {
		next := p.OnSuccess()
		if prev < 15 && next != prev+1 {
			t.Fatalf("success %d: limit %d -> %d, want +1", i, prev, next)
		}
		if next > 15 {
			t.Fatalf("limit %d exceeded ceiling", next)
		}
		prev = next
	}
	if p.Limit() != 15 {
		t.Errorf("limit = %d, want ceiling 15", p.Limit())
	}

	// Failures halve down to the floor, then hold.
	if got := p.OnFailure(); got != 7 {
		t.Errorf("after failure limit = %d, want 7", got)
	}
	if got := p.OnFailure(); got != 3 {
		t.Errorf("after failure limit = %d, want 3", got)
	}
	if got := p.OnFailure(); got != 2 {
		t.Errorf("after failure limit = %d, want floor 2", got)
	}
	if got := p.OnFailure(); got != 2 {
		t.Errorf("limit fell below floor: %d", got)
	}
}

func TestAIMDPolicyClamping(t *testing.T) {
	testCases := []struct {
		name            string
		start, min, max int
		wantLimit       int
	}{
		{"StartBelowMin", 1, 2, 15, 2},
		{"StartAboveMax", 50, 2, 15, 15},
		{"MaxBelowMin", 5, 4, 1, 4},
		{"ZeroMin", 0, 0, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := batch.NewAIMDPolicy(tc.start, tc.min, tc.max)
			if p.Limit() != tc.wantLimit {
				t.Errorf("limit = %d, want %d", p.Limit(), tc.wantLimit)
			}
		})
	}
}
