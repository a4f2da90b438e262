package runlog

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLogRunAndRecent(t *testing.T) {
	logger := NewLogger(filepath.Join(t.TempDir(), "runlog.db"))

	if err := logger.LogRun("health", "ok", 40*time.Millisecond, nil); err != nil {
		t.Fatalf("log run: %v", err)
	}
	if err := logger.LogRun("alerts", "degraded", 15*time.Millisecond, []string{"teams unavailable"}); err != nil {
		t.Fatalf("log run: %v", err)
	}

	entries, err := logger.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	ops := map[string]Entry{}
	for _, e := range entries {
		ops[e.Operation] = e
		if e.RunID == "" {
			t.Fatalf("entry missing run id: %+v", e)
		}
	}
	degraded, ok := ops["alerts"]
	if !ok {
		t.Fatalf("alerts run not recorded: %v", entries)
	}
	if degraded.Status != "degraded" {
		t.Fatalf("status = %s, want degraded", degraded.Status)
	}
	if len(degraded.Faults) != 1 || degraded.Faults[0] != "teams unavailable" {
		t.Fatalf("faults = %v", degraded.Faults)
	}
}

func TestRecentLimit(t *testing.T) {
	logger := NewLogger(filepath.Join(t.TempDir(), "runlog.db"))

	for i := 0; i < 5; i++ {
		if err := logger.LogRun("insights", "ok", time.Millisecond, nil); err != nil {
			t.Fatalf("log run: %v", err)
		}
	}

	entries, err := logger.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var logger *Logger
	if err := logger.LogRun("health", "ok", time.Millisecond, nil); err != nil {
		t.Fatalf("nil logger should no-op, got %v", err)
	}
}

func TestRecentEmptyLog(t *testing.T) {
	logger := NewLogger(filepath.Join(t.TempDir(), "runlog.db"))
	entries, err := logger.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
