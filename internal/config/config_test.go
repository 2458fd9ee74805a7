package config_test

import (
	"testing"
	"time"

	"battery_project/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MergeWindow != 5*time.Minute {
		t.Errorf("MergeWindow = %v, want 5m", cfg.MergeWindow)
	}
	if cfg.GapThreshold != 2*time.Hour {
		t.Errorf("GapThreshold = %v, want 2h", cfg.GapThreshold)
	}
	if cfg.ConcurrencyStart != 5 || cfg.ConcurrencyMin != 2 || cfg.ConcurrencyMax != 15 {
		t.Errorf("concurrency = %d/%d/%d, want 5/2/15",
			cfg.ConcurrencyStart, cfg.ConcurrencyMin, cfg.ConcurrencyMax)
	}
	if cfg.DuplicatePolicy != "hold" {
		t.Errorf("DuplicatePolicy = %s, want hold", cfg.DuplicatePolicy)
	}
	if cfg.ExportCap != 500 {
		t.Errorf("ExportCap = %d, want 500", cfg.ExportCap)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MERGE_WINDOW_MS", "60000")
	t.Setenv("DUPLICATE_POLICY", "skip")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MergeWindow != time.Minute {
		t.Errorf("MergeWindow = %v, want 1m", cfg.MergeWindow)
	}
	if cfg.DuplicatePolicy != "skip" {
		t.Errorf("DuplicatePolicy = %s, want skip", cfg.DuplicatePolicy)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"BadDuplicatePolicy", "DUPLICATE_POLICY", "maybe"},
		{"GapBelowWindow", "GAP_THRESHOLD_MS", "1000"},
		{"NegativeWindow", "MERGE_WINDOW_MS", "-5"},
		{"BadConcurrency", "CONCURRENCY_MIN", "0"},
		{"StartOutOfBounds", "CONCURRENCY_START", "99"},
		{"BadExportCap", "EXPORT_POINT_CAP", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := config.Load(); err == nil {
				t.Errorf("Load with %s=%s should fail", tc.key, tc.value)
			}
		})
	}
}
