package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// StateStore persists wallet sessions and the pending-connection
// marker across process restarts. This is the client-local storage of
// the redirect protocol.
type StateStore interface {
	PutSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, provider string) (Session, bool, error)
	DeleteSession(ctx context.Context, provider string) error
	PutPending(ctx context.Context, p PendingConnection) error
	GetPending(ctx context.Context) (PendingConnection, bool, error)
	ClearPending(ctx context.Context) error
	Close() error
}

const pendingKey = "pending_connection"

// SQLiteStateStore keeps wallet state in a small key/value table next
// to the strategy store.
type SQLiteStateStore struct {
	db *sql.DB
}

func OpenSQLiteStateStore(path string) (*SQLiteStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet sqlite: %w", err)
	}
	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS wallet_state (key TEXT PRIMARY KEY, payload BLOB NOT NULL);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init wallet schema: %w", err)
		}
	}
	return &SQLiteStateStore{db: db}, nil
}

func (s *SQLiteStateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sessionKey(provider string) string { return "session:" + provider }

func (s *SQLiteStateStore) put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal wallet state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallet_state (key, payload) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET payload=excluded.payload
	`, key, payload)
	if err != nil {
		return fmt.Errorf("write wallet state: %w", err)
	}
	return nil
}

func (s *SQLiteStateStore) get(ctx context.Context, key string, out any) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM wallet_state WHERE key = ?", key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read wallet state: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode wallet state: %w", err)
	}
	return true, nil
}

func (s *SQLiteStateStore) delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM wallet_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete wallet state: %w", err)
	}
	return nil
}

func (s *SQLiteStateStore) PutSession(ctx context.Context, sess Session) error {
	return s.put(ctx, sessionKey(sess.Provider), sess)
}

func (s *SQLiteStateStore) GetSession(ctx context.Context, provider string) (Session, bool, error) {
	var sess Session
	ok, err := s.get(ctx, sessionKey(provider), &sess)
	return sess, ok, err
}

func (s *SQLiteStateStore) DeleteSession(ctx context.Context, provider string) error {
	return s.delete(ctx, sessionKey(provider))
}

func (s *SQLiteStateStore) PutPending(ctx context.Context, p PendingConnection) error {
	return s.put(ctx, pendingKey, p)
}

func (s *SQLiteStateStore) GetPending(ctx context.Context) (PendingConnection, bool, error) {
	var p PendingConnection
	ok, err := s.get(ctx, pendingKey, &p)
	return p, ok, err
}

func (s *SQLiteStateStore) ClearPending(ctx context.Context) error {
	return s.delete(ctx, pendingKey)
}

// MemoryStateStore backs tests.
type MemoryStateStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	pending  *PendingConnection
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{sessions: map[string]Session{}}
}

func (s *MemoryStateStore) PutSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Provider] = sess
	return nil
}

func (s *MemoryStateStore) GetSession(_ context.Context, provider string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[provider]
	return sess, ok, nil
}

func (s *MemoryStateStore) DeleteSession(_ context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, provider)
	return nil
}

func (s *MemoryStateStore) PutPending(_ context.Context, p PendingConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
	return nil
}

func (s *MemoryStateStore) GetPending(_ context.Context) (PendingConnection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingConnection{}, false, nil
	}
	return *s.pending, true, nil
}

func (s *MemoryStateStore) ClearPending(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

func (s *MemoryStateStore) Close() error { return nil }
