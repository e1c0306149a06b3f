package ledger

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
	"github.com/yetify/yetify-cli/internal/wallet"
)

// stubBackend counts submissions and returns a scripted result.
type stubBackend struct {
	provider string
	receipt  Receipt
	err      error
	submits  int
}

func (s *stubBackend) Provider() string { return s.provider }

func (s *stubBackend) Submit(_ context.Context, _ wallet.Session, _ []byte) (Receipt, error) {
	s.submits++
	if s.err != nil {
		return Receipt{}, s.err
	}
	return s.receipt, nil
}

// directProvider connects in-process with a fixed session.
type directProvider struct {
	name string
}

func (p directProvider) Name() string { return p.name }
func (p directProvider) Flow() wallet.Flow { return wallet.FlowDirect }
func (p directProvider) Connect(context.Context) (wallet.Session, error) {
	return wallet.Session{Provider: p.name, AccountID: "alice.test", ConnectedAt: time.Now().UTC()}, nil
}
func (p directProvider) AuthorizeURL(string) (string, error) {
	return "", errors.New("direct provider")
}
func (p directProvider) Exchange(context.Context, string, url.Values) (wallet.Session, error) {
	return wallet.Session{}, errors.New("direct provider")
}
func (p directProvider) Validate(_ context.Context, s wallet.Session) (wallet.Session, error) {
	return s, nil
}

func validPlan() strategy.Plan {
	return strategy.Plan{ID: "strategy_1", Goal: "yield", Chains: []string{"NEAR"}}
}

func connectedPersister(t *testing.T, backend Backend) *Persister {
	t.Helper()
	connector := wallet.NewConnector(wallet.NewMemoryStateStore(), zerolog.Nop(), directProvider{name: "near"})
	if _, err := connector.Connect(context.Background(), "near"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return NewPersister(connector, time.Minute, zerolog.Nop(), backend)
}

func TestStoreRequiresConnectedWallet(t *testing.T) {
	backend := &stubBackend{provider: "near"}
	connector := wallet.NewConnector(wallet.NewMemoryStateStore(), zerolog.Nop(), directProvider{name: "near"})
	p := NewPersister(connector, time.Minute, zerolog.Nop(), backend)

	_, err := p.StoreCompleteStrategy(context.Background(), "near", validPlan())
	if clierr.CodeOf(err) != clierr.CodePrecondition {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	// Fail-fast: the backend is never contacted.
	if backend.submits != 0 {
		t.Fatalf("backend contacted despite disconnected wallet")
	}
}

func TestStoreSerializationFailsBeforeSubmit(t *testing.T) {
	backend := &stubBackend{provider: "near"}
	p := connectedPersister(t, backend)

	_, err := p.StoreCompleteStrategy(context.Background(), "near", strategy.Plan{Goal: "no id"})
	if clierr.CodeOf(err) != clierr.CodeFatal {
		t.Fatalf("expected fatal serialization error, got %v", err)
	}
	if backend.submits != 0 {
		t.Fatalf("backend contacted with an unserializable plan")
	}
}

func TestStoreSubmitsThroughBackend(t *testing.T) {
	backend := &stubBackend{provider: "near", receipt: Receipt{TransactionHash: "8x1abc", GasUsed: "300"}}
	p := connectedPersister(t, backend)

	receipt, err := p.StoreCompleteStrategy(context.Background(), "near", validPlan())
	if err != nil {
		t.Fatalf("StoreCompleteStrategy failed: %v", err)
	}
	if receipt.TransactionHash != "8x1abc" || receipt.GasUsed != "300" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if backend.submits != 1 {
		t.Fatalf("submits = %d", backend.submits)
	}
}

func TestStoreSurfacesBackendClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want clierr.Code
	}{
		{"rejected", clierr.New(clierr.CodeRejected, "owner rejected"), clierr.CodeRejected},
		{"transient", clierr.New(clierr.CodeTransient, "rpc flaky"), clierr.CodeTransient},
		{"timeout", clierr.New(clierr.CodeTimeout, "no receipt"), clierr.CodeTimeout},
		{"fatal", clierr.New(clierr.CodeFatal, "bad payload"), clierr.CodeFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &stubBackend{provider: "near", err: tc.err}
			p := connectedPersister(t, backend)

			_, err := p.StoreCompleteStrategy(context.Background(), "near", validPlan())
			if clierr.CodeOf(err) != tc.want {
				t.Fatalf("code = %v, want %v", clierr.CodeOf(err), tc.want)
			}
		})
	}
}

func TestStoreUnknownBackendProvider(t *testing.T) {
	p := connectedPersister(t, &stubBackend{provider: "evm"})
	_, err := p.StoreCompleteStrategy(context.Background(), "near", validPlan())
	if clierr.CodeOf(err) != clierr.CodeFatal {
		t.Fatalf("expected fatal for missing backend, got %v", err)
	}
}
