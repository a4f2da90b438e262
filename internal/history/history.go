// Package history persists the small time series the analytics engine needs
// between runs: past composite health scores (for the trend comparison) and
// realized-ROI periods (for the forecast slope). Derived records themselves
// are never persisted as a source of truth.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages engine history in SQLite.
type Store struct {
	DBPath string
	db     *sql.DB
}

// HealthEntry is one recorded composite score.
type HealthEntry struct {
	RecordedAt time.Time
	Score      int
	Components map[string]float64
}

// Open opens or creates the history database.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{DBPath: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS health_scores (
	recorded_at TEXT PRIMARY KEY,
	score INTEGER NOT NULL,
	components_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS roi_periods (
	period TEXT PRIMARY KEY,
	realized_roi REAL NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// AppendHealth records a composite health score for the given instant.
func (s *Store) AppendHealth(recordedAt time.Time, score int, components map[string]float64) error {
	componentsJSON, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO health_scores (recorded_at, score, components_json)
		VALUES (?, ?, ?)
		ON CONFLICT(recorded_at) DO UPDATE SET
			score = excluded.score,
			components_json = excluded.components_json
	`, recordedAt.UTC().Format(time.RFC3339), score, string(componentsJSON))
	if err != nil {
		return fmt.Errorf("insert health score: %w", err)
	}
	return nil
}

// LatestHealthScore returns the most recent recorded score, or nil when the
// history is empty.
func (s *Store) LatestHealthScore() (*int, error) {
	var score int
	err := s.db.QueryRow(
		"SELECT score FROM health_scores ORDER BY recorded_at DESC LIMIT 1",
	).Scan(&score)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest health score: %w", err)
	}
	return &score, nil
}

// HealthSeries returns up to limit recorded scores, oldest first.
func (s *Store) HealthSeries(limit int) ([]HealthEntry, error) {
	rows, err := s.db.Query(
		"SELECT recorded_at, score, components_json FROM health_scores ORDER BY recorded_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query health series: %w", err)
	}
	defer rows.Close()

	var entries []HealthEntry
	for rows.Next() {
		var recordedAt, componentsJSON string
		var entry HealthEntry
		if err := rows.Scan(&recordedAt, &entry.Score, &componentsJSON); err != nil {
			return nil, fmt.Errorf("scan health entry: %w", err)
		}
		entry.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		if err := json.Unmarshal([]byte(componentsJSON), &entry.Components); err != nil {
			return nil, fmt.Errorf("decode components: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health series: %w", err)
	}

	// Reverse to oldest-first for callers feeding trend math.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// RecordROIPeriod upserts the realized ROI for a period key (e.g. "2026-08").
func (s *Store) RecordROIPeriod(period string, realizedROI float64) error {
	if period == "" {
		return fmt.Errorf("period is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO roi_periods (period, realized_roi)
		VALUES (?, ?)
		ON CONFLICT(period) DO UPDATE SET realized_roi = excluded.realized_roi
	`, period, realizedROI)
	if err != nil {
		return fmt.Errorf("record roi period: %w", err)
	}
	return nil
}

// ROISeries returns up to limit realized-ROI values ordered oldest first.
// Period keys sort lexicographically in chronological order.
func (s *Store) ROISeries(limit int) ([]float64, error) {
	rows, err := s.db.Query(
		"SELECT realized_roi FROM roi_periods ORDER BY period DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query roi series: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan roi period: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roi series: %w", err)
	}

	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values, nil
}
