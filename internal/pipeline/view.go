package pipeline

import (
	"sort"
	"time"

	"battery_project/internal/domain"
)

// DefaultGapThreshold is the minimum inter-point gap that produces a visual
// break in a chart view.
const DefaultGapThreshold = 2 * time.Hour

// BuildView derives a display-ready projection of a canonical series: points
// older than the range window are filtered out, and a synthetic null-valued
// marker is inserted wherever consecutive points are further apart than the
// gap threshold. The marker sits at prev + threshold/2, which can never
// coincide with either neighbor because the gap is strictly wider than the
// threshold. Each real view point carries its index into the canonical
// series; synthetic markers carry -1 and must never resolve as selection
// endpoints.
//
// The series is assumed sorted ascending (the merge invariant), so the
// filtered result is already chronological.
func BuildView(series []domain.DataPoint, r domain.RangeFilter, now time.Time, gap time.Duration) domain.ViewSeries {
	if gap <= 0 {
		gap = DefaultGapThreshold
	}
	gapMs := gap.Milliseconds()

	start := 0
	if window, ok := r.Window(); ok {
		cutoff := now.UnixMilli() - window.Milliseconds()
		start = sort.Search(len(series), func(i int) bool {
			return series[i].Timestamp >= cutoff
		})
	}

	view := domain.ViewSeries{Range: r, Points: make([]domain.ViewPoint, 0, len(series)-start)}
	for i := start; i < len(series); i++ {
		p := series[i]
		if len(view.Points) > 0 {
			prev := view.Points[len(view.Points)-1]
			if p.Timestamp-prev.Timestamp > gapMs {
				view.Points = append(view.Points, domain.ViewPoint{
					Timestamp:      prev.Timestamp + gapMs/2,
					Synthetic:      true,
					CanonicalIndex: -1,
				})
			}
		}
		view.Points = append(view.Points, domain.ViewPoint{
			Timestamp:      p.Timestamp,
			Values:         p.Values,
			CanonicalIndex: i,
		})
	}
	return view
}

// ResolveSelection maps a brush selection, given as start/end timestamps, to
// canonical series indices: the first point at or after start and the last
// point at or before end. The lookup runs against the original unfiltered,
// unpadded series, so synthetic gap markers can never be selected. ok is
// false when no real point falls inside the selection.
func ResolveSelection(series []domain.DataPoint, startTs, endTs int64) (first, last int, ok bool) {
	if len(series) == 0 || endTs < startTs {
		return 0, 0, false
	}

	first = sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp >= startTs
	})
	if first == len(series) {
		return 0, 0, false
	}

	// Last point with timestamp <= endTs.
	afterEnd := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp > endTs
	})
	last = afterEnd - 1
	if last < first {
		return 0, 0, false
	}
	return first, last, true
}
