package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/yetify/yetify-cli/internal/registry"
)

func accountRPC(t *testing.T, handler http.HandlerFunc) (*AccountProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewAccountProvider(registry.Network{
		Name:       "near-testnet",
		RPCURL:     srv.URL,
		WalletURL:  "https://wallet.testnet.near.org",
		ContractID: "strategy-storage.yetify.testnet",
	}, httpx.New(5*time.Second, 0))
	return p, srv
}

func TestAuthorizeURL(t *testing.T) {
	p, _ := accountRPC(t, func(w http.ResponseWriter, r *http.Request) {})

	raw, err := p.AuthorizeURL("tok123")
	if err != nil {
		t.Fatalf("AuthorizeURL failed: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad url: %v", err)
	}
	if !strings.HasSuffix(parsed.Path, "/login/") {
		t.Fatalf("path = %s", parsed.Path)
	}
	q := parsed.Query()
	if q.Get("contract_id") != "strategy-storage.yetify.testnet" {
		t.Fatalf("contract_id = %s", q.Get("contract_id"))
	}
	if q.Get("state") != "tok123" {
		t.Fatalf("state = %s", q.Get("state"))
	}
}

func TestExchangeBuildsValidatedSession(t *testing.T) {
	p, _ := accountRPC(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcQueryRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Params["request_type"] != "view_access_key" {
			t.Errorf("expected access-key validation, got %v", req.Params["request_type"])
		}
		var resp rpcQueryResponse
		resp.Result.Amount = "5000000000000000000000000"
		json.NewEncoder(w).Encode(resp)
	})

	params := url.Values{"all_keys": {"ed25519:abc,ed25519:def"}}
	sess, err := p.Exchange(context.Background(), "alice.test", params)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if sess.AccountID != "alice.test" || sess.Network != "near-testnet" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	// First granted key wins when the wallet returns several.
	if sess.PublicKey != "ed25519:abc" {
		t.Fatalf("publicKey = %s", sess.PublicKey)
	}
	if sess.Balance != "5000000000000000000000000" {
		t.Fatalf("balance = %s", sess.Balance)
	}
}

func TestValidateDetectsRevocation(t *testing.T) {
	cases := []struct {
		name  string
		cause string
	}{
		{"deleted account", "UNKNOWN_ACCOUNT"},
		{"removed key", "ACCESS_KEY_DOES_NOT_EXIST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := accountRPC(t, func(w http.ResponseWriter, r *http.Request) {
				body := `{"error":{"message":"account not found","cause":{"name":"` + tc.cause + `"}}}`
				w.Write([]byte(body))
			})

			_, err := p.Validate(context.Background(), Session{Provider: "near", AccountID: "gone.test", PublicKey: "ed25519:abc"})
			if !errors.Is(err, ErrSessionRevoked) {
				t.Fatalf("expected ErrSessionRevoked, got %v", err)
			}
		})
	}
}

func TestValidateTransientRPCFailure(t *testing.T) {
	p, srv := accountRPC(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // unreachable node

	_, err := p.Validate(context.Background(), Session{Provider: "near", AccountID: "alice.test"})
	if err == nil || errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("unreachable node must not read as revocation: %v", err)
	}
}
