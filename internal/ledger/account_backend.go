package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/yetify/yetify-cli/internal/registry"
	"github.com/yetify/yetify-cli/internal/wallet"
)

const storeMethod = "store_complete_strategy"

// AccountBackend persists strategies through the account-based chain.
// Writes go through the relay, which signs with the function-call key
// the wallet granted during connect; reads are plain RPC view calls.
type AccountBackend struct {
	network registry.Network
	client  *httpx.Client
}

func NewAccountBackend(network registry.Network, client *httpx.Client) *AccountBackend {
	return &AccountBackend{network: network, client: client}
}

func (b *AccountBackend) Provider() string { return "near" }

type relayRequest struct {
	SignerID   string `json:"signer_id"`
	PublicKey  string `json:"public_key,omitempty"`
	ContractID string `json:"contract_id"`
	MethodName string `json:"method_name"`
	Args       string `json:"args"`
	Deposit    string `json:"deposit,omitempty"`
}

type relayResponse struct {
	TransactionHash string `json:"transaction_hash"`
	GasBurnt        uint64 `json:"gas_burnt,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (b *AccountBackend) Submit(ctx context.Context, sess wallet.Session, payload []byte) (Receipt, error) {
	args, err := json.Marshal(map[string]string{"strategy_json": string(payload)})
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeFatal, "encode contract args", err)
	}
	req := relayRequest{
		SignerID:   sess.AccountID,
		PublicKey:  sess.PublicKey,
		ContractID: b.network.ContractID,
		MethodName: storeMethod,
		Args:       base64.StdEncoding.EncodeToString(args),
		Deposit:    "1",
	}
	var resp relayResponse
	if err := b.client.PostJSON(ctx, b.network.RelayURL, req, &resp); err != nil {
		if ctx.Err() != nil {
			return Receipt{}, clierr.Wrap(clierr.CodeTimeout, "ledger submission timed out", ctx.Err())
		}
		return Receipt{}, err
	}
	if resp.Error != "" {
		return Receipt{}, classifyRelayError(resp.Error)
	}
	if resp.TransactionHash == "" {
		return Receipt{}, clierr.New(clierr.CodeFatal, "relay returned no transaction hash")
	}
	receipt := Receipt{TransactionHash: resp.TransactionHash}
	if resp.GasBurnt > 0 {
		receipt.GasUsed = strconv.FormatUint(resp.GasBurnt, 10)
	}
	return receipt, nil
}

func classifyRelayError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rejected") || strings.Contains(lower, "denied"):
		return clierr.New(clierr.CodeRejected, "wallet owner rejected the transaction")
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return clierr.New(clierr.CodeTimeout, "ledger submission timed out")
	case strings.Contains(lower, "parse") || strings.Contains(lower, "deserialize") || strings.Contains(lower, "required"):
		return clierr.New(clierr.CodeFatal, "contract rejected the strategy payload: "+msg)
	}
	// Unknown relay failures are treated conservatively as fatal.
	return clierr.New(clierr.CodeFatal, "ledger submission failed: "+msg)
}

type viewRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type viewResponse struct {
	Result struct {
		// The node returns the call result as an array of byte values.
		Result []int `json:"result"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// view invokes a read-only contract method and decodes its return
// value into out. Best effort; callers must not block lifecycle
// operations on it.
func (b *AccountBackend) view(ctx context.Context, method string, args any, out any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return clierr.Wrap(clierr.CodeFatal, "encode view args", err)
	}
	req := viewRequest{
		JSONRPC: "2.0",
		ID:      "yetify",
		Method:  "query",
		Params: map[string]any{
			"request_type": "call_function",
			"finality":     "final",
			"account_id":   b.network.ContractID,
			"method_name":  method,
			"args_base64":  base64.StdEncoding.EncodeToString(encoded),
		},
	}
	var resp viewResponse
	if err := b.client.PostJSON(ctx, b.network.RPCURL, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return clierr.New(clierr.CodeTransient, fmt.Sprintf("view call %s failed: %s", method, resp.Error.Message))
	}
	if out == nil {
		return nil
	}
	raw := make([]byte, len(resp.Result.Result))
	for i, v := range resp.Result.Result {
		raw[i] = byte(v)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return clierr.Wrap(clierr.CodeFatal, "decode view result", err)
	}
	return nil
}

// GetStrategy reads one stored strategy back from the contract.
func (b *AccountBackend) GetStrategy(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := b.view(ctx, "get_strategy", map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StrategiesByCreator lists the creator's stored strategies.
func (b *AccountBackend) StrategiesByCreator(ctx context.Context, accountID string) ([]map[string]any, error) {
	var out []map[string]any
	if err := b.view(ctx, "get_strategies_by_creator", map[string]string{"creator": accountID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalStrategies reads the contract's global strategy count.
func (b *AccountBackend) TotalStrategies(ctx context.Context) (uint64, error) {
	var out uint64
	if err := b.view(ctx, "total_strategies", map[string]string{}, &out); err != nil {
		return 0, err
	}
	return out, nil
}
