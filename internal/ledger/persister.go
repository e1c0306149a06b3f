package ledger

import (
	"context"
	"time"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/rs/zerolog"
)

// Receipt is the durable proof of an on-chain write.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	GasUsed         string `json:"gasUsed,omitempty"`
}

// Backend submits a serialized strategy through one wallet provider's
// chain. Implementations never touch the local strategy store.
type Backend interface {
	Provider() string
	Submit(ctx context.Context, sess wallet.Session, payload []byte) (Receipt, error)
}

// Persister bridges a connected wallet session and the external
// ledger. Every failure is classified for the caller: precondition
// (wallet not connected), rejected (no retry), transient/timeout
// (retryable), or fatal (protocol mismatch). On any failure the
// operation has no observable side effect.
type Persister struct {
	connector *wallet.Connector
	backends  map[string]Backend
	timeout   time.Duration
	log       zerolog.Logger
}

func NewPersister(connector *wallet.Connector, timeout time.Duration, log zerolog.Logger, backends ...Backend) *Persister {
	byProvider := make(map[string]Backend, len(backends))
	for _, b := range backends {
		byProvider[b.Provider()] = b
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Persister{
		connector: connector,
		backends:  byProvider,
		timeout:   timeout,
		log:       log.With().Str("component", "onchain_persister").Logger(),
	}
}

// StoreCompleteStrategy serializes the plan and submits it through
// the connected session of the named provider. The wallet
// precondition is checked before any serialization or network work.
func (p *Persister) StoreCompleteStrategy(ctx context.Context, providerName string, plan strategy.Plan) (Receipt, error) {
	if !p.connector.IsConnected(ctx, providerName) {
		return Receipt{}, clierr.New(clierr.CodePrecondition, "wallet not connected; connect a wallet before storing on-chain")
	}
	sess, ok := p.connector.Session(ctx, providerName)
	if !ok {
		return Receipt{}, clierr.New(clierr.CodePrecondition, "wallet session unavailable")
	}
	backend, ok := p.backends[providerName]
	if !ok {
		return Receipt{}, clierr.New(clierr.CodeFatal, "no ledger backend for provider "+providerName)
	}

	payload, err := SerializePlan(plan)
	if err != nil {
		return Receipt{}, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	receipt, err := backend.Submit(submitCtx, sess, payload)
	if err != nil {
		p.log.Warn().
			Err(err).
			Str("provider", providerName).
			Str("strategy_id", plan.ID).
			Msg("on-chain store failed")
		return Receipt{}, err
	}
	p.log.Info().
		Str("provider", providerName).
		Str("strategy_id", plan.ID).
		Str("tx_hash", receipt.TransactionHash).
		Msg("strategy stored on-chain")
	return receipt, nil
}
