package pipeline

import (
	"sort"
	"time"

	"battery_project/internal/domain"
)

// DefaultMergeWindow is the maximum timestamp gap within which points are
// collapsed into one aggregate.
const DefaultMergeWindow = 5 * time.Minute

// MergeSeries merges a batch of new points into an existing series and
// returns the deduplicated, time-windowed result.
//
// The combined points are sorted ascending by timestamp and partitioned in a
// single left-to-right pass: a new group starts whenever the next point
// exceeds the last point already placed in the current group by more than the
// window. The chain rule means a long quiet-then-bursty run collapses
// chain-wise instead of anchoring only to the group's first timestamp.
//
// Each group collapses to one point anchored to its first (earliest) member's
// timestamp; every other key is averaged over only the members that define
// it, so a point missing a key never drags that key's mean toward zero.
//
// The result is sorted ascending with no two adjacent points closer than the
// window. This holds for one linear pass only: re-merging an already-merged
// series is not guaranteed to reproduce the boundaries of merging the same
// points from scratch, which is why the aggregate timestamp anchors to the
// first member (the stablest choice) rather than the group mean.
func MergeSeries(existing, incoming []domain.DataPoint, window time.Duration) []domain.DataPoint {
	if window <= 0 {
		window = DefaultMergeWindow
	}
	windowMs := window.Milliseconds()

	combined := make([]domain.DataPoint, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	if len(combined) == 0 {
		return nil
	}

	sort.Slice(combined, func(i, j int) bool {
		return combined[i].Timestamp < combined[j].Timestamp
	})

	merged := make([]domain.DataPoint, 0, len(combined))
	group := []domain.DataPoint{combined[0]}
	for _, p := range combined[1:] {
		last := group[len(group)-1]
		if p.Timestamp-last.Timestamp > windowMs {
			merged = append(merged, collapseGroup(group))
			group = group[:0]
		}
		group = append(group, p)
	}
	merged = append(merged, collapseGroup(group))
	return merged
}

// collapseGroup reduces a contiguous group to one point. Size-1 groups pass
// through unchanged (deep-copied so callers never alias input maps).
func collapseGroup(group []domain.DataPoint) domain.DataPoint {
	if len(group) == 1 {
		return group[0].Clone()
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range group {
		for k, v := range p.Values {
			sums[k] += v
			counts[k]++
		}
	}

	out := domain.NewDataPoint(group[0].Timestamp)
	for k, sum := range sums {
		out.Values[k] = sum / float64(counts[k])
	}
	return out
}
