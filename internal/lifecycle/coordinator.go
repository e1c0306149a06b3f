package lifecycle

import (
	"context"
	"sync"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/ledger"
	"github.com/yetify/yetify-cli/internal/strategy"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/rs/zerolog"
)

// Persister is the ledger-submission dependency of the coordinator.
type Persister interface {
	StoreCompleteStrategy(ctx context.Context, providerName string, plan strategy.Plan) (ledger.Receipt, error)
}

// Coordinator drives a saved strategy through an on-chain commit:
// wallet gate, ledger submission, then the execution record. Failure
// policy: rejections and fatal errors append a failed record;
// transient failures and timeouts leave history untouched so the user
// can retry; precondition failures never touch the store.
type Coordinator struct {
	store     *strategy.Store
	tracker   *strategy.Tracker
	connector *wallet.Connector
	persister Persister
	provider  string
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCoordinator(store *strategy.Store, tracker *strategy.Tracker, connector *wallet.Connector, persister Persister, provider string, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		tracker:   tracker,
		connector: connector,
		persister: persister,
		provider:  provider,
		log:       log.With().Str("component", "lifecycle_coordinator").Logger(),
		inFlight:  map[string]struct{}{},
	}
}

// Result reports a completed execution.
type Result struct {
	Strategy strategy.SavedStrategy `json:"strategy"`
	Receipt  ledger.Receipt         `json:"receipt"`
}

// Execute commits a saved strategy to the ledger. At most one call
// per strategy id is in flight at any time; the guard is released on
// every exit path.
func (c *Coordinator) Execute(ctx context.Context, strategyID string) (Result, error) {
	if !c.acquire(strategyID) {
		return Result{}, clierr.New(clierr.CodeTransient, "an execution for this strategy is already in flight")
	}
	defer c.release(strategyID)

	saved, ok := c.store.GetByID(ctx, strategyID)
	if !ok {
		return Result{}, clierr.New(clierr.CodeNotFound, "strategy not found: "+strategyID)
	}
	if !c.connector.IsConnected(ctx, c.provider) {
		return Result{}, clierr.New(clierr.CodePrecondition, "wallet not connected; run wallet connect first")
	}

	receipt, err := c.persister.StoreCompleteStrategy(ctx, c.provider, saved.Plan)
	if err != nil {
		if !clierr.Retryable(err) && clierr.CodeOf(err) != clierr.CodePrecondition {
			c.tracker.AddExecutionRecord(ctx, strategyID, strategy.NewExecutionRecord{
				Status:       strategy.RecordFailed,
				ErrorMessage: err.Error(),
			})
		}
		return Result{}, err
	}

	c.tracker.AddExecutionRecord(ctx, strategyID, strategy.NewExecutionRecord{
		Status:          strategy.RecordCompleted,
		TransactionHash: receipt.TransactionHash,
		GasUsed:         receipt.GasUsed,
	})
	updated, _ := c.store.GetByID(ctx, strategyID)
	c.log.Info().
		Str("strategy_id", strategyID).
		Str("tx_hash", receipt.TransactionHash).
		Msg("strategy executed")
	return Result{Strategy: updated, Receipt: receipt}, nil
}

func (c *Coordinator) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}
