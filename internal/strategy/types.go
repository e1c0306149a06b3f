package strategy

import "time"

// Status is the aggregate lifecycle state of a saved strategy. It is
// derived from the most recent execution record and never mutated
// independently of the history.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RecordStatus is the state reported by a single execution attempt.
type RecordStatus string

const (
	RecordStarted    RecordStatus = "started"
	RecordInProgress RecordStatus = "in_progress"
	RecordCompleted  RecordStatus = "completed"
	RecordFailed     RecordStatus = "failed"
)

// PlanStep is one ordered action inside a generated plan.
type PlanStep struct {
	Action      string   `json:"action"`
	Protocol    string   `json:"protocol"`
	Asset       string   `json:"asset"`
	Amount      string   `json:"amount,omitempty"`
	ExpectedAPY *float64 `json:"expectedApy,omitempty"`
}

// Plan is a generated yield strategy. Plans are immutable once
// produced; the generator that emits them is out of scope here and
// plans arrive as JSON documents.
type Plan struct {
	ID           string     `json:"id,omitempty"`
	Goal         string     `json:"goal"`
	Chains       []string   `json:"chains"`
	Protocols    []string   `json:"protocols"`
	Steps        []PlanStep `json:"steps"`
	RiskLevel    string     `json:"riskLevel"`
	EstimatedAPY *float64   `json:"estimatedApy,omitempty"`
	EstimatedTVL string     `json:"estimatedTvl,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
}

// ExecutionRecord is one immutable log entry describing an attempt to
// act on a strategy. Records are appended, never edited or removed.
type ExecutionRecord struct {
	ID              string       `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	Status          RecordStatus `json:"status"`
	TransactionHash string       `json:"transactionHash,omitempty"`
	ErrorMessage    string       `json:"errorMessage,omitempty"`
	GasUsed         string       `json:"gasUsed,omitempty"`
	ActualReturn    string       `json:"actualReturn,omitempty"`
}

// Performance holds derived metrics for a strategy. Best effort; a
// missing feed leaves it nil.
type Performance struct {
	TotalValue  *float64  `json:"totalValue,omitempty"`
	TotalReturn *float64  `json:"totalReturn,omitempty"`
	CurrentAPY  *float64  `json:"currentApy,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SavedStrategy is a plan plus its local save and execution metadata.
// Timestamps are persisted as RFC3339 text and reconstructed as
// time.Time on every load.
type SavedStrategy struct {
	Plan
	Name             string            `json:"name"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        *time.Time        `json:"updatedAt,omitempty"`
	Status           Status            `json:"status"`
	ExecutionHistory []ExecutionRecord `json:"executionHistory"`
	Performance      *Performance      `json:"performance,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
}

// NextStatus maps a newly appended execution record onto the
// strategy's aggregate status. An in_progress record leaves the
// current status unchanged; every other record status wins.
func NextStatus(current Status, appended RecordStatus) Status {
	switch appended {
	case RecordStarted:
		return StatusExecuting
	case RecordCompleted:
		return StatusCompleted
	case RecordFailed:
		return StatusFailed
	default:
		return current
	}
}

// LatestRecord returns the most recently appended record, or false
// when the history is empty.
func (s *SavedStrategy) LatestRecord() (ExecutionRecord, bool) {
	if len(s.ExecutionHistory) == 0 {
		return ExecutionRecord{}, false
	}
	return s.ExecutionHistory[len(s.ExecutionHistory)-1], true
}
