package strategy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Repository is the persistence backend for saved strategies. The
// store layers failure handling and write serialization on top, so
// implementations only need plain CRUD.
type Repository interface {
	Put(ctx context.Context, s SavedStrategy) error
	Get(ctx context.Context, id string) (SavedStrategy, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]SavedStrategy, error)
	Close() error
}

// SQLiteRepository keeps the collection in a local sqlite file, one
// row per strategy with the full record as a JSON payload column. A
// file lock guards writes against a second process.
type SQLiteRepository struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLiteRepository(path, lockPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create strategy store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create strategy lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open strategy sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS strategies (
			strategy_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_strategies_status_created ON strategies(status, created_at);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init strategy schema: %w", err)
		}
	}
	return &SQLiteRepository{db: db, lock: flock.New(lockPath)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) Put(ctx context.Context, s SavedStrategy) error {
	if s.ID == "" {
		return fmt.Errorf("put strategy: missing id")
	}
	locked, err := r.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock strategy store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock strategy store: timeout acquiring lock")
	}
	defer func() { _ = r.lock.Unlock() }()

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}
	updated := s.CreatedAt
	if s.UpdatedAt != nil {
		updated = *s.UpdatedAt
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO strategies (strategy_id, status, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(strategy_id) DO UPDATE SET
			status=excluded.status,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, s.ID, string(s.Status), s.CreatedAt.UTC().UnixMilli(), updated.UTC().UnixMilli(), payload)
	if err != nil {
		return fmt.Errorf("put strategy: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (SavedStrategy, bool, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM strategies WHERE strategy_id = ?", id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SavedStrategy{}, false, nil
		}
		return SavedStrategy{}, false, fmt.Errorf("read strategy: %w", err)
	}
	var s SavedStrategy
	if err := json.Unmarshal(payload, &s); err != nil {
		return SavedStrategy{}, false, fmt.Errorf("decode strategy payload: %w", err)
	}
	return s, true, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	locked, err := r.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return false, fmt.Errorf("lock strategy store: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("lock strategy store: timeout acquiring lock")
	}
	defer func() { _ = r.lock.Unlock() }()

	res, err := r.db.ExecContext(ctx, "DELETE FROM strategies WHERE strategy_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete strategy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete strategy: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]SavedStrategy, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT payload FROM strategies ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	out := make([]SavedStrategy, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		var s SavedStrategy
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("decode strategy row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy rows: %w", err)
	}
	return out, nil
}

// MemoryRepository is an in-memory backend used by tests and by
// callers that run without a storage path. FailWrites and FailReads
// simulate storage-layer faults.
type MemoryRepository struct {
	mu         sync.RWMutex
	records    map[string]SavedStrategy
	FailWrites bool
	FailReads  bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[string]SavedStrategy{}}
}

func (r *MemoryRepository) Put(_ context.Context, s SavedStrategy) error {
	if r.FailWrites {
		return errors.New("simulated write failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.ID] = cloneStrategy(s)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (SavedStrategy, bool, error) {
	if r.FailReads {
		return SavedStrategy{}, false, errors.New("simulated read failure")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.records[id]
	if !ok {
		return SavedStrategy{}, false, nil
	}
	return cloneStrategy(s), true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	if r.FailWrites {
		return false, errors.New("simulated write failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[id]
	delete(r.records, id)
	return ok, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]SavedStrategy, error) {
	if r.FailReads {
		return nil, errors.New("simulated read failure")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SavedStrategy, 0, len(r.records))
	for _, s := range r.records {
		out = append(out, cloneStrategy(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }

func cloneStrategy(s SavedStrategy) SavedStrategy {
	out := s
	out.Chains = append([]string(nil), s.Chains...)
	out.Protocols = append([]string(nil), s.Protocols...)
	out.Steps = append([]PlanStep(nil), s.Steps...)
	out.Warnings = append([]string(nil), s.Warnings...)
	out.Tags = append([]string(nil), s.Tags...)
	out.ExecutionHistory = append([]ExecutionRecord(nil), s.ExecutionHistory...)
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		out.UpdatedAt = &t
	}
	if s.Performance != nil {
		p := *s.Performance
		out.Performance = &p
	}
	return out
}
