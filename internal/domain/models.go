package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DataPoint is a single reading for one battery: a dynamic set of metric
// values keyed by normalized name, plus an epoch-millisecond timestamp.
// The key set is schema-on-read and can differ between points of the same
// series. Values are always finite; non-numeric extractions are dropped
// before a point is built.
type DataPoint struct {
	Timestamp int64
	Values    map[string]float64
}

// NewDataPoint creates an empty point at the given timestamp.
func NewDataPoint(ts int64) DataPoint {
	return DataPoint{Timestamp: ts, Values: make(map[string]float64)}
}

// Clone returns a deep copy of the point.
func (p DataPoint) Clone() DataPoint {
	out := DataPoint{Timestamp: p.Timestamp, Values: make(map[string]float64, len(p.Values))}
	for k, v := range p.Values {
		out.Values[k] = v
	}
	return out
}

// MarshalJSON flattens the point into one object: {"timestamp": ..., "soc": ...}.
// This is the session export wire shape.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Values)+1)
	flat["timestamp"] = p.Timestamp
	for k, v := range p.Values {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON accepts the flat export shape. A point without a finite
// timestamp is rejected; non-numeric metric values are rejected as well so a
// corrupt import never half-loads.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var flat map[string]json.Number
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	tsRaw, ok := flat["timestamp"]
	if !ok {
		return fmt.Errorf("data point missing timestamp")
	}
	ts, err := tsRaw.Int64()
	if err != nil {
		// Tolerate fractional epoch values from older exports.
		f, ferr := tsRaw.Float64()
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("invalid timestamp %q", tsRaw.String())
		}
		ts = int64(f)
	}
	p.Timestamp = ts
	p.Values = make(map[string]float64, len(flat)-1)
	for k, num := range flat {
		if k == "timestamp" {
			continue
		}
		v, err := num.Float64()
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid value for %q: %q", k, num.String())
		}
		p.Values[k] = v
	}
	return nil
}

// JobStatus is the lifecycle state of an ImageJob.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusSuccess    JobStatus = "success"
	StatusDuplicate  JobStatus = "duplicate"
	StatusError      JobStatus = "error"
)

// ImageJob is one queued unit of extraction work tied to one image.
// Transitions are driven solely by the batch controller; terminal states are
// success, duplicate and error, but error jobs may be re-queued manually.
type ImageJob struct {
	ID       string    `json:"id"`
	FileName string    `json:"file_name"`
	MIME     string    `json:"mime"`
	Payload  []byte    `json:"-"`
	Status   JobStatus `json:"status"`
	Error    string    `json:"error,omitempty"`

	// Set on success.
	BatteryID string          `json:"battery_id,omitempty"`
	Verified  map[string]bool `json:"verified,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExtractionResult is the envelope returned by the external OCR/LLM call.
// ExtractedData is itself a JSON string and is not guaranteed well-formed.
type ExtractionResult struct {
	Success       bool   `json:"success"`
	BatteryID     string `json:"batteryId"`
	ExtractedData string `json:"extractedData"`
	Timestamp     int64  `json:"timestamp"`
	Error         string `json:"error,omitempty"`
}

// ChartInfo is advisory, presentational metadata for one battery's series.
// Safe to discard and regenerate; never authoritative.
type ChartInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RangeFilter selects the time window of a chart view.
type RangeFilter string

const (
	Range1D  RangeFilter = "1d"
	Range1W  RangeFilter = "1w"
	Range1M  RangeFilter = "1m"
	RangeAll RangeFilter = "all"
)

// ParseRangeFilter validates a range string, defaulting empty to "all".
func ParseRangeFilter(s string) (RangeFilter, error) {
	switch RangeFilter(s) {
	case Range1D, Range1W, Range1M, RangeAll:
		return RangeFilter(s), nil
	case "":
		return RangeAll, nil
	}
	return "", fmt.Errorf("invalid range %q (use 1d, 1w, 1m or all)", s)
}

// Window returns the filter's lookback duration. ok is false for RangeAll,
// which applies no filtering.
func (r RangeFilter) Window() (time.Duration, bool) {
	switch r {
	case Range1D:
		return 24 * time.Hour, true
	case Range1W:
		return 7 * 24 * time.Hour, true
	case Range1M:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// ViewPoint is one entry of a display view: either a real series point with
// its canonical index, or a synthetic gap marker (no values, CanonicalIndex
// of -1) inserted where the series has a large time discontinuity.
type ViewPoint struct {
	Timestamp      int64              `json:"timestamp"`
	Values         map[string]float64 `json:"values,omitempty"`
	Synthetic      bool               `json:"synthetic,omitempty"`
	CanonicalIndex int                `json:"canonical_index"`
}

// ViewSeries is a derived, disposable projection of a canonical series for a
// given range filter. Recomputed on every filter change, never persisted.
type ViewSeries struct {
	Range  RangeFilter `json:"range"`
	Points []ViewPoint `json:"points"`
}

// BatteryExport is the per-battery slice of a session export.
type BatteryExport struct {
	History   []DataPoint `json:"history"`
	ChartInfo *ChartInfo  `json:"chartInfo"`
}

// SessionExport maps battery id to its exported state. This is the single
// JSON blob that import/export round-trips.
type SessionExport map[string]BatteryExport

// Stats reports session counters.
type Stats struct {
	Batteries      int     `json:"batteries"`
	TotalPoints    int     `json:"total_points"`
	JobsQueued     int     `json:"jobs_queued"`
	JobsProcessing int     `json:"jobs_processing"`
	JobsSuccess    int     `json:"jobs_success"`
	JobsDuplicate  int     `json:"jobs_duplicate"`
	JobsError      int     `json:"jobs_error"`
	Progress       float64 `json:"progress"`
	Concurrency    int     `json:"concurrency"`
}
