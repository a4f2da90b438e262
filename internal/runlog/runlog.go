// Package runlog writes an append-only log of engine runs to SQLite, so
// degraded computations leave an inspectable trail.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultRunLogPath = "state/runlog.db"

// Logger writes run events to a specific SQLite DB path.
type Logger struct {
	DBPath string
}

// Entry describes one engine run of a single operation.
type Entry struct {
	RunID     string    `json:"run_id"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	Duration  string    `json:"duration"`
	Faults    []string  `json:"faults,omitempty"`
	At        time.Time `json:"at"`
}

// NewLogger returns a Logger bound to the provided DB path.
func NewLogger(dbPath string) *Logger {
	return &Logger{DBPath: dbPath}
}

// LogRun records one completed operation run. A nil logger is a no-op so the
// engine can run without a workspace state directory.
func (l *Logger) LogRun(operation, status string, duration time.Duration, faults []string) error {
	if l == nil {
		return nil
	}
	resolved, err := resolveDBPath(l.DBPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return fmt.Errorf("open runlog db: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := ensureSchema(db); err != nil {
		return err
	}

	faultsJSON, err := json.Marshal(faults)
	if err != nil {
		return fmt.Errorf("marshal faults: %w", err)
	}

	_, err = db.Exec(
		"INSERT INTO runs (run_id, ts, operation, status, duration_ms, faults_json) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.New().String(),
		time.Now().UTC().Format(time.RFC3339),
		operation,
		status,
		duration.Milliseconds(),
		string(faultsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the most recent run entries, newest first.
func (l *Logger) Recent(limit int) ([]Entry, error) {
	resolved, err := resolveDBPath(l.DBPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("open runlog db: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := ensureSchema(db); err != nil {
		return nil, err
	}

	rows, err := db.Query(
		"SELECT run_id, ts, operation, status, duration_ms, faults_json FROM runs ORDER BY ts DESC, run_id LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, faultsJSON string
		var durationMS int64
		if err := rows.Scan(&e.RunID, &ts, &e.Operation, &e.Status, &durationMS, &faultsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339, ts)
		e.Duration = (time.Duration(durationMS) * time.Millisecond).String()
		if err := json.Unmarshal([]byte(faultsJSON), &e.Faults); err != nil {
			return nil, fmt.Errorf("decode faults: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			operation TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			faults_json TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create runlog schema: %w", err)
	}
	return nil
}

func resolveDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = os.Getenv("COMPASS_RUNLOG_DB")
	}
	if dbPath == "" {
		dbPath = defaultRunLogPath
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve runlog db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure runlog db dir: %w", err)
	}
	return absPath, nil
}
