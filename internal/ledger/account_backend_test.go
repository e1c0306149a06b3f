package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/yetify/yetify-cli/internal/registry"
	"github.com/yetify/yetify-cli/internal/wallet"
)

func testSession() wallet.Session {
	return wallet.Session{
		Provider:  "near",
		AccountID: "alice.test",
		PublicKey: "ed25519:abc",
	}
}

func TestAccountBackendSubmit(t *testing.T) {
	var got relayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode relay request: %v", err)
		}
		json.NewEncoder(w).Encode(relayResponse{TransactionHash: "8x1abc", GasBurnt: 2428})
	}))
	defer srv.Close()

	backend := NewAccountBackend(registry.Network{
		Name:       "near-testnet",
		RelayURL:   srv.URL,
		ContractID: "strategy-storage.yetify.testnet",
	}, httpx.New(5*time.Second, 0))

	payload, err := SerializePlan(validPlan())
	if err != nil {
		t.Fatalf("SerializePlan failed: %v", err)
	}
	receipt, err := backend.Submit(context.Background(), testSession(), payload)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if receipt.TransactionHash != "8x1abc" || receipt.GasUsed != "2428" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	if got.SignerID != "alice.test" || got.ContractID != "strategy-storage.yetify.testnet" {
		t.Fatalf("unexpected relay request: %+v", got)
	}
	if got.MethodName != "store_complete_strategy" {
		t.Fatalf("method = %s", got.MethodName)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Args)
	if err != nil {
		t.Fatalf("args not base64: %v", err)
	}
	var args map[string]string
	if err := json.Unmarshal(raw, &args); err != nil {
		t.Fatalf("args not JSON: %v", err)
	}
	if args["strategy_json"] != string(payload) {
		t.Fatalf("strategy payload mangled in transit")
	}
}

func TestClassifyRelayError(t *testing.T) {
	cases := []struct {
		msg  string
		want clierr.Code
	}{
		{"user rejected the request", clierr.CodeRejected},
		{"Access denied by wallet", clierr.CodeRejected},
		{"transaction timed out waiting for inclusion", clierr.CodeTimeout},
		{"Failed to deserialize input from JSON", clierr.CodeFatal},
		{"strategy id is required", clierr.CodeFatal},
		{"something nobody anticipated", clierr.CodeFatal},
	}
	for _, tc := range cases {
		if got := clierr.CodeOf(classifyRelayError(tc.msg)); got != tc.want {
			t.Fatalf("classifyRelayError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestAccountBackendViews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req viewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode view request: %v", err)
		}
		if req.Method != "query" || req.Params["request_type"] != "call_function" {
			t.Errorf("unexpected rpc request: %+v", req)
		}
		var result []byte
		switch req.Params["method_name"] {
		case "total_strategies":
			result = []byte("7")
		case "get_strategy":
			result = []byte(`{"id":"strategy_1","goal":"yield"}`)
		default:
			result = []byte("null")
		}
		var resp viewResponse
		for _, b := range result {
			resp.Result.Result = append(resp.Result.Result, int(b))
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	backend := NewAccountBackend(registry.Network{
		Name:       "near-testnet",
		RPCURL:     srv.URL,
		ContractID: "strategy-storage.yetify.testnet",
	}, httpx.New(5*time.Second, 0))
	ctx := context.Background()

	total, err := backend.TotalStrategies(ctx)
	if err != nil || total != 7 {
		t.Fatalf("TotalStrategies = %d, %v", total, err)
	}
	got, err := backend.GetStrategy(ctx, "strategy_1")
	if err != nil {
		t.Fatalf("GetStrategy failed: %v", err)
	}
	if got["goal"] != "yield" {
		t.Fatalf("unexpected strategy: %+v", got)
	}
}
