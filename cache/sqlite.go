package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite is a persistent store kept in a single table. Cached values
// survive restarts, so a restarted gateway can serve stale data right away.
type SQLite struct {
	db      *sql.DB
	writeMu sync.Mutex
	nowFunc func() time.Time
}

// NewSQLite opens (or creates) the database at path. An empty path opens a
// shared in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", path, err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER NOT NULL,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: init sqlite: %w", err)
		}
	}
	return &SQLite{db: db, nowFunc: time.Now}, nil
}

// Get retrieves a value by key. Expired entries are reported as misses.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache WHERE key = ?", key).Scan(&expires, &val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: sqlite get %s: %w", key, err)
	}
	if expires > 0 && !s.nowFunc().Before(time.UnixMilli(expires)) {
		return nil, false, nil
	}
	return val, true, nil
}

// Set replaces the value under key. A zero TTL stores the entry without
// expiry.
func (s *SQLite) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = s.nowFunc().Add(ttl).UnixMilli()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, expires, bytes) VALUES (?, ?, ?)",
		key, expires, val,
	); err != nil {
		return fmt.Errorf("cache: sqlite set %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes every expired entry and returns how many were
// removed.
func (s *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache WHERE expires > 0 AND expires <= ?", s.nowFunc().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
