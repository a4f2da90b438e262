// Package cache is the engine-owned derived-analysis cache: SQLite-backed,
// keyed by operation and entity id, with a time-to-live per entry. Keeping it
// engine-side makes invalidation and staleness testable independent of any UI.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache stores serialized analysis results with expiry.
type Cache struct {
	DBPath string
	db     *sql.DB
}

// Open opens or creates the cache database.
func Open(path string) (*Cache, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cache db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := &Cache{DBPath: absPath, db: db}
	if err := c.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Cache) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	stored_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("create cache schema: %w", err)
	}
	return nil
}

// Key builds the canonical cache key for an operation and optional entity id.
func Key(operation, entityID string) string {
	if entityID == "" {
		return operation
	}
	return operation + ":" + entityID
}

// Get returns the cached payload for key, or a miss when absent or expired.
// Expired rows are deleted on the way out.
func (c *Cache) Get(key string, now time.Time) ([]byte, bool, error) {
	var payload, expiresAt string
	err := c.db.QueryRow(
		"SELECT payload, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || !expiry.After(now) {
		if _, delErr := c.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); delErr != nil {
			return nil, false, fmt.Errorf("evict expired entry: %w", delErr)
		}
		return nil, false, nil
	}
	return []byte(payload), true, nil
}

// Put stores a payload under key with the given time-to-live, replacing any
// previous entry.
func (c *Cache) Put(key string, payload []byte, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	_, err := c.db.Exec(`
		INSERT INTO cache_entries (key, payload, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, string(payload), now.UTC().Format(time.RFC3339), now.Add(ttl).UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Invalidate removes every entry whose key starts with the given prefix.
// Passing an operation name drops all cached results for that operation.
func (c *Cache) Invalidate(prefix string) (int64, error) {
	res, err := c.db.Exec("DELETE FROM cache_entries WHERE key = ? OR key LIKE ?", prefix, prefix+":%")
	if err != nil {
		return 0, fmt.Errorf("invalidate cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Purge removes all expired entries.
func (c *Cache) Purge(now time.Time) (int64, error) {
	res, err := c.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
