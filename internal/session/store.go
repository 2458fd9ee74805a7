package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"battery_project/internal/domain"
	"battery_project/internal/pipeline"
	"battery_project/pkg/logger"
)

// ErrImport marks a session import rejected wholesale: malformed input never
// half-loads into the store.
var ErrImport = errors.New("session import rejected")

// DefaultExportCap limits exported history to the most recent points per
// battery for size control.
const DefaultExportCap = 500

// batterySession is one battery's in-memory state.
type batterySession struct {
	history   []domain.DataPoint
	chartInfo *domain.ChartInfo
	infoStale bool
}

// Store is the single owner of the session's shared mutable state: the
// per-battery canonical series map, the processed-filename set and the
// chart-info cache. Every merge is a read-modify-write against the latest
// series under the store lock, never against a stale snapshot, so
// concurrent extraction completions for the same battery cannot lose
// updates. State lives only for the process lifetime; export/import of one
// JSON blob is the only persistence.
type Store struct {
	mu          sync.RWMutex
	batteries   map[string]*batterySession
	knownFiles  map[string]bool
	mergeWindow time.Duration
	exportCap   int
}

// NewStore creates an empty session store. window <= 0 falls back to the
// default merge window, cap <= 0 to the default export cap.
func NewStore(window time.Duration, cap int) *Store {
	if window <= 0 {
		window = pipeline.DefaultMergeWindow
	}
	if cap <= 0 {
		cap = DefaultExportCap
	}
	return &Store{
		batteries:   make(map[string]*batterySession),
		knownFiles:  make(map[string]bool),
		mergeWindow: window,
		exportCap:   cap,
	}
}

// Ingest merges new points into a battery's series, creating the series on
// first contact. Points with an unknown (empty) battery id are refused.
func (s *Store) Ingest(batteryID string, points ...domain.DataPoint) {
	if batteryID == "" || len(points) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.batteries[batteryID]
	if !ok {
		sess = &batterySession{}
		s.batteries[batteryID] = sess
	}
	sess.history = pipeline.MergeSeries(sess.history, points, s.mergeWindow)
	sess.infoStale = true
}

// MarkProcessed records a filename as successfully processed this session.
func (s *Store) MarkProcessed(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownFiles[fileName] = true
}

// KnownFile reports whether a filename was already processed this session.
func (s *Store) KnownFile(fileName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knownFiles[fileName]
}

// Batteries lists known battery ids with their point counts.
func (s *Store) Batteries() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.batteries))
	for id, sess := range s.batteries {
		out[id] = len(sess.history)
	}
	return out
}

// Series returns a copy of one battery's canonical series.
func (s *Store) Series(batteryID string) ([]domain.DataPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.batteries[batteryID]
	if !ok {
		return nil, false
	}
	out := make([]domain.DataPoint, len(sess.history))
	for i, p := range sess.history {
		out[i] = p.Clone()
	}
	return out, true
}

// MetricNames returns the union of metric keys present in a battery's series.
func (s *Store) MetricNames(batteryID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.batteries[batteryID]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, p := range sess.history {
		for k := range p.Values {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	return names
}

// ChartInfo returns the cached advisory metadata for a battery and whether
// the cache is stale (series changed since it was generated).
func (s *Store) ChartInfo(batteryID string) (*domain.ChartInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.batteries[batteryID]
	if !ok {
		return nil, false
	}
	return sess.chartInfo, sess.infoStale || sess.chartInfo == nil
}

// SetChartInfo caches freshly generated metadata for a battery. A failed
// regeneration simply never calls this and the old value stays, which is
// fine: chart info is advisory and safe to serve stale.
func (s *Store) SetChartInfo(batteryID string, info domain.ChartInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.batteries[batteryID]; ok {
		sess.chartInfo = &info
		sess.infoStale = false
	}
}

// Export serializes the whole session as one JSON blob, each battery's
// history capped to the most recent points.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export := make(domain.SessionExport, len(s.batteries))
	for id, sess := range s.batteries {
		history := sess.history
		if len(history) > s.exportCap {
			history = history[len(history)-s.exportCap:]
		}
		export[id] = domain.BatteryExport{
			History:   history,
			ChartInfo: sess.chartInfo,
		}
	}
	return json.MarshalIndent(export, "", "  ")
}

// Import merges an exported session blob into the current state. The blob is
// validated wholesale first: a malformed file is rejected with ErrImport and
// nothing is loaded. Each battery's history then goes through the series
// merger as a fresh incoming batch, so merge invariants hold afterwards.
func (s *Store) Import(data []byte) error {
	var export domain.SessionExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("%w: %v", ErrImport, err)
	}
	for id := range export {
		if id == "" {
			return fmt.Errorf("%w: entry with empty battery id", ErrImport)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, be := range export {
		sess, ok := s.batteries[id]
		if !ok {
			sess = &batterySession{}
			s.batteries[id] = sess
		}
		if len(be.History) > 0 {
			sess.history = pipeline.MergeSeries(sess.history, be.History, s.mergeWindow)
			sess.infoStale = true
		}
		if sess.chartInfo == nil && be.ChartInfo != nil {
			sess.chartInfo = be.ChartInfo
		}
	}
	logger.Infof("Imported session state for %d batteries", len(export))
	return nil
}

// Clear wipes all session state. This is the only way a series is ever
// deleted.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batteries = make(map[string]*batterySession)
	s.knownFiles = make(map[string]bool)
}

// TotalPoints counts stored points across all batteries.
func (s *Store) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, sess := range s.batteries {
		total += len(sess.history)
	}
	return total
}
