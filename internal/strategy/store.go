package strategy

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store owns the persisted strategy collection. All mutations go
// through it; writes are serialized behind a single mutex so two
// overlapping read-modify-write cycles cannot lose updates.
//
// Storage faults never escape as panics or crashes: reads degrade to
// empty results and writes report failure, with the underlying cause
// logged at warn level.
type Store struct {
	repo Repository
	log  zerolog.Logger
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(repo Repository, log zerolog.Logger) *Store {
	return &Store{
		repo: repo,
		log:  log.With().Str("component", "strategy_store").Logger(),
		now:  time.Now,
	}
}

// Save creates a SavedStrategy from a generated plan. The plan keeps
// its id when the generator assigned one; otherwise a fresh id is
// synthesized. Returns false when persistence failed.
func (s *Store) Save(ctx context.Context, plan Plan, name string, tags []string) (SavedStrategy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == "" {
		plan.ID = NewStrategyID()
	}
	saved := SavedStrategy{
		Plan:             plan,
		Name:             name,
		CreatedAt:        s.now().UTC(),
		Status:           StatusSaved,
		ExecutionHistory: []ExecutionRecord{},
		Tags:             tags,
	}
	if err := s.repo.Put(ctx, saved); err != nil {
		s.log.Warn().Err(err).Str("strategy_id", saved.ID).Msg("save failed, strategy not persisted")
		return SavedStrategy{}, false
	}
	return saved, true
}

// Update is a partial-field merge. The id and createdAt of the stored
// record are immutable; updatedAt is stamped on every successful
// merge and never moves backwards.
type Update struct {
	Name        *string
	Status      *Status
	Performance *Performance
	Tags        *[]string
}

// Update merges fields into an existing record. A missing id is
// reported as found=false with nothing mutated, never as an error.
func (s *Store) Update(ctx context.Context, id string, fields Update) (SavedStrategy, bool) {
	return s.Mutate(ctx, id, func(rec *SavedStrategy) {
		if fields.Name != nil {
			rec.Name = *fields.Name
		}
		if fields.Status != nil {
			rec.Status = *fields.Status
		}
		if fields.Performance != nil {
			rec.Performance = fields.Performance
		}
		if fields.Tags != nil {
			rec.Tags = *fields.Tags
		}
	})
}

// Mutate runs a read-modify-write cycle for one strategy under the
// store's write lock. The mutation function may change anything
// except id and createdAt, which are restored before persisting.
// Returns found=false for an unknown id or a storage fault.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*SavedStrategy)) (SavedStrategy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("strategy_id", id).Msg("read failed during mutate")
		return SavedStrategy{}, false
	}
	if !ok {
		return SavedStrategy{}, false
	}

	keepID, keepCreated := rec.ID, rec.CreatedAt
	fn(&rec)
	rec.ID, rec.CreatedAt = keepID, keepCreated

	now := s.now().UTC()
	if rec.UpdatedAt != nil && now.Before(*rec.UpdatedAt) {
		now = *rec.UpdatedAt
	}
	rec.UpdatedAt = &now

	if err := s.repo.Put(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("strategy_id", id).Msg("write failed during mutate")
		return SavedStrategy{}, false
	}
	return rec, true
}

// Delete removes a strategy and reports whether a record was removed.
// Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("strategy_id", id).Msg("delete failed")
		return false
	}
	return removed
}

// GetByID returns the record and whether it exists. Storage faults
// read as absence.
func (s *Store) GetByID(ctx context.Context, id string) (SavedStrategy, bool) {
	rec, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("strategy_id", id).Msg("read failed")
		return SavedStrategy{}, false
	}
	return rec, ok
}

// List returns the full collection in creation order.
func (s *Store) List(ctx context.Context) []SavedStrategy {
	all, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("list failed, returning empty collection")
		return []SavedStrategy{}
	}
	return all
}

// ListByStatus filters the current snapshot by aggregate status.
func (s *Store) ListByStatus(ctx context.Context, status Status) []SavedStrategy {
	out := make([]SavedStrategy, 0)
	for _, rec := range s.List(ctx) {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// Search matches case-insensitively against name, goal and tags.
func (s *Store) Search(ctx context.Context, query string) []SavedStrategy {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}
	out := make([]SavedStrategy, 0)
	for _, rec := range s.List(ctx) {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Goal), q) ||
			matchesTag(rec.Tags, q) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesTag(tags []string, q string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// SetNow overrides the store clock. Tests only.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

func (s *Store) Close() error { return s.repo.Close() }
