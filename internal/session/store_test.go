package session_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"battery_project/internal/domain"
	"battery_project/internal/session"
)

func pt(ts int64, soc float64) domain.DataPoint {
	p := domain.NewDataPoint(ts)
	p.Values["soc"] = soc
	return p
}

func TestIngestMergesIntoLatestState(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)

	store.Ingest("BAT-1", pt(0, 50))
	store.Ingest("BAT-1", pt(60000, 52))

	series, ok := store.Series("BAT-1")
	if !ok {
		t.Fatal("battery missing")
	}
	if len(series) != 1 {
		t.Fatalf("got %d points, want 1 merged", len(series))
	}
	if series[0].Values["soc"] != 51 {
		t.Errorf("soc = %v, want 51", series[0].Values["soc"])
	}

	// Unknown battery ids are refused, not auto-created as "".
	store.Ingest("", pt(0, 1))
	if _, ok := store.Series(""); ok {
		t.Error("empty battery id must not create a series")
	}
}

func TestConcurrentIngestLosesNothing(t *testing.T) {
	store := session.NewStore(time.Millisecond, 10000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Spread points far apart so none of them merge.
			store.Ingest("BAT-C", pt(int64(n)*time.Hour.Milliseconds(), float64(n)))
		}(i)
	}
	wg.Wait()

	series, _ := store.Series("BAT-C")
	if len(series) != 50 {
		t.Errorf("got %d points, want 50 (lost update)", len(series))
	}
}

func TestSeriesReturnsCopies(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)
	store.Ingest("BAT-1", pt(0, 50))

	series, _ := store.Series("BAT-1")
	series[0].Values["soc"] = 999

	again, _ := store.Series("BAT-1")
	if again[0].Values["soc"] != 50 {
		t.Error("Series must return copies, not aliases")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	// An already-merged series survives export -> import into a fresh
	// session unchanged.
	store := session.NewStore(5*time.Minute, 500)
	store.Ingest("BAT-1", pt(0, 50), pt(600000, 60), pt(7200000, 70))
	store.Ingest("BAT-2", pt(1000, 10))
	store.SetChartInfo("BAT-2", domain.ChartInfo{Title: "Pack 2", Description: "steady"})

	blob, err := store.Export()
	if err != nil {
		t.Fatal(err)
	}

	fresh := session.NewStore(5*time.Minute, 500)
	if err := fresh.Import(blob); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"BAT-1", "BAT-2"} {
		orig, _ := store.Series(id)
		got, _ := fresh.Series(id)
		if !reflect.DeepEqual(orig, got) {
			t.Errorf("%s: round-trip mismatch\norig: %v\ngot:  %v", id, orig, got)
		}
	}

	info, _ := fresh.ChartInfo("BAT-2")
	if info == nil || info.Title != "Pack 2" {
		t.Errorf("chart info lost in round-trip: %v", info)
	}
}

func TestExportCapsHistory(t *testing.T) {
	store := session.NewStore(time.Millisecond, 10)
	points := make([]domain.DataPoint, 0, 50)
	for i := 0; i < 50; i++ {
		points = append(points, pt(int64(i)*time.Hour.Milliseconds(), float64(i)))
	}
	store.Ingest("BAT-1", points...)

	blob, err := store.Export()
	if err != nil {
		t.Fatal(err)
	}

	var export domain.SessionExport
	if err := json.Unmarshal(blob, &export); err != nil {
		t.Fatal(err)
	}
	history := export["BAT-1"].History
	if len(history) != 10 {
		t.Fatalf("exported %d points, want cap 10", len(history))
	}
	// The cap keeps the most recent points.
	if history[0].Values["soc"] != 40 {
		t.Errorf("oldest exported soc = %v, want 40", history[0].Values["soc"])
	}
}

func TestImportRejectsMalformedWholesale(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)
	store.Ingest("KEEP", pt(0, 1))

	bad := [][]byte{
		[]byte(`{broken`),
		[]byte(`{"": {"history": []}}`),
		[]byte(`{"B": {"history": [{"soc": 50}]}}`),                     // point without timestamp
		[]byte(`{"B": {"history": [{"timestamp": 1, "soc": "high"}]}}`), // non-numeric value
	}
	for _, blob := range bad {
		err := store.Import(blob)
		if err == nil {
			t.Errorf("import of %s should fail", blob)
			continue
		}
		if !errors.Is(err, session.ErrImport) {
			t.Errorf("error %v is not ErrImport", err)
		}
		if _, ok := store.Series("B"); ok {
			t.Fatalf("partial import leaked from %s", blob)
		}
	}

	if _, ok := store.Series("KEEP"); !ok {
		t.Error("failed import must not disturb existing state")
	}
}

func TestClearResetsEverything(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)
	store.Ingest("BAT-1", pt(0, 50))
	store.MarkProcessed("a.png")

	store.Clear()

	if store.TotalPoints() != 0 || len(store.Batteries()) != 0 {
		t.Error("series survived clear")
	}
	if store.KnownFile("a.png") {
		t.Error("filename set survived clear")
	}
}

func TestChartInfoStaleness(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)

	if _, stale := store.ChartInfo("nope"); stale {
		t.Error("unknown battery should not report stale")
	}

	store.Ingest("BAT-1", pt(0, 50))
	info, stale := store.ChartInfo("BAT-1")
	if info != nil || !stale {
		t.Errorf("fresh series: info=%v stale=%v, want nil/stale", info, stale)
	}

	store.SetChartInfo("BAT-1", domain.ChartInfo{Title: "t"})
	if _, stale := store.ChartInfo("BAT-1"); stale {
		t.Error("just-set info should not be stale")
	}

	// Any series change invalidates the cache.
	store.Ingest("BAT-1", pt(time.Hour.Milliseconds(), 60))
	if _, stale := store.ChartInfo("BAT-1"); !stale {
		t.Error("series change should mark info stale")
	}
}

func TestMetricNames(t *testing.T) {
	store := session.NewStore(5*time.Minute, 500)
	p1 := pt(0, 50)
	p2 := domain.NewDataPoint(time.Hour.Milliseconds())
	p2.Values["voltage"] = 13.1
	store.Ingest("BAT-1", p1, p2)

	names := store.MetricNames("BAT-1")
	if len(names) != 2 {
		t.Fatalf("names = %v, want soc and voltage", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["soc"] || !seen["voltage"] {
		t.Errorf("names = %v, want soc and voltage", names)
	}
}

func TestImportMergesAsFreshBatch(t *testing.T) {
	// Importing on top of existing state merges per battery, subject to the
	// usual window invariants.
	store := session.NewStore(5*time.Minute, 500)
	store.Ingest("BAT-1", pt(0, 50))

	blob := fmt.Sprintf(`{"BAT-1": {"history": [{"timestamp": %d, "soc": 52}], "chartInfo": null}}`, 60000)
	if err := store.Import([]byte(blob)); err != nil {
		t.Fatal(err)
	}

	series, _ := store.Series("BAT-1")
	if len(series) != 1 || series[0].Values["soc"] != 51 {
		t.Errorf("series = %v, want single merged point soc=51", series)
	}
}
