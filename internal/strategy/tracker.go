package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Tracker appends execution records to a strategy's history and keeps
// the aggregate status consistent with the latest record. History is
// append-only: nothing here removes or reorders existing records.
type Tracker struct {
	store *Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewTracker(store *Store, log zerolog.Logger) *Tracker {
	return &Tracker{
		store: store,
		log:   log.With().Str("component", "execution_tracker").Logger(),
		now:   time.Now,
	}
}

// NewExecutionRecord is the caller-provided part of a record. Id and
// timestamp are synthesized on append.
type NewExecutionRecord struct {
	Status          RecordStatus
	TransactionHash string
	ErrorMessage    string
	GasUsed         string
	ActualReturn    string
}

// AddExecutionRecord appends a record and rederives the strategy
// status. Returns false when the strategy does not exist or the write
// failed; nothing is mutated in either case.
func (t *Tracker) AddExecutionRecord(ctx context.Context, strategyID string, rec NewExecutionRecord) bool {
	record := ExecutionRecord{
		ID:              NewRecordID(),
		Timestamp:       t.now().UTC(),
		Status:          rec.Status,
		TransactionHash: rec.TransactionHash,
		ErrorMessage:    rec.ErrorMessage,
		GasUsed:         rec.GasUsed,
		ActualReturn:    rec.ActualReturn,
	}
	updated, ok := t.store.Mutate(ctx, strategyID, func(s *SavedStrategy) {
		s.ExecutionHistory = append(s.ExecutionHistory, record)
		s.Status = NextStatus(s.Status, record.Status)
	})
	if !ok {
		t.log.Debug().Str("strategy_id", strategyID).Msg("execution record dropped, strategy not found")
		return false
	}
	t.log.Info().
		Str("strategy_id", strategyID).
		Str("record_id", record.ID).
		Str("record_status", string(record.Status)).
		Str("strategy_status", string(updated.Status)).
		Msg("execution record appended")
	return true
}

// UpdatePerformanceMetrics merges derived metrics into the strategy.
// It stamps lastUpdated and leaves status and history untouched.
func (t *Tracker) UpdatePerformanceMetrics(ctx context.Context, strategyID string, metrics Performance) bool {
	metrics.LastUpdated = t.now().UTC()
	_, ok := t.store.Mutate(ctx, strategyID, func(s *SavedStrategy) {
		merged := metrics
		if s.Performance != nil {
			if merged.TotalValue == nil {
				merged.TotalValue = s.Performance.TotalValue
			}
			if merged.TotalReturn == nil {
				merged.TotalReturn = s.Performance.TotalReturn
			}
			if merged.CurrentAPY == nil {
				merged.CurrentAPY = s.Performance.CurrentAPY
			}
		}
		s.Performance = &merged
	})
	return ok
}

// SetNow overrides the tracker clock. Tests only.
func (t *Tracker) SetNow(now func() time.Time) { t.now = now }
