package yields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Cache keeps yield-feed responses in a local sqlite file so repeated
// lookups do not hammer the feed. Entries past their TTL are served
// as stale until maxStale, then discarded.
type Cache struct {
	db   *sql.DB
	lock *flock.Flock
}

type CacheResult struct {
	Hit   bool
	Value []byte
	Age   time.Duration
	Stale bool
}

func OpenCache(path, lockPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open yields cache: %w", err)
	}
	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS feed_cache (key TEXT PRIMARY KEY, value BLOB NOT NULL, created_at INTEGER NOT NULL, ttl_seconds INTEGER NOT NULL);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}
	c := &Cache{db: db, lock: flock.New(lockPath)}
	_ = c.prune()
	return c, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// prune drops entries whose staleness window has fully elapsed.
func (c *Cache) prune() error {
	nowUnix := time.Now().UTC().Unix()
	_, err := c.db.Exec("DELETE FROM feed_cache WHERE created_at + 4*ttl_seconds < ?", nowUnix)
	if err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

func (c *Cache) Get(key string, maxStale time.Duration) (CacheResult, error) {
	var value []byte
	var createdUnix, ttlSeconds int64
	err := c.db.QueryRow("SELECT value, created_at, ttl_seconds FROM feed_cache WHERE key = ?", key).Scan(&value, &createdUnix, &ttlSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CacheResult{}, nil
		}
		return CacheResult{}, fmt.Errorf("cache read: %w", err)
	}
	age := time.Since(time.Unix(createdUnix, 0).UTC())
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	stale := age > ttl
	if stale && maxStale >= 0 && age > ttl+maxStale {
		return CacheResult{}, nil
	}
	return CacheResult{Hit: true, Value: value, Age: age, Stale: stale}, nil
}

func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	locked, err := c.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = c.lock.Unlock() }()

	ttlSeconds := int64(ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	_, err = c.db.Exec(`
		INSERT INTO feed_cache (key, value, created_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			created_at=excluded.created_at,
			ttl_seconds=excluded.ttl_seconds
	`, key, value, time.Now().UTC().Unix(), ttlSeconds)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
