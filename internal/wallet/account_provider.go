package wallet

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/yetify/yetify-cli/internal/registry"
)

// AccountProvider is the account-based wallet backend (NEAR-style).
// It cannot connect in-process: the user authorizes on the provider's
// wallet page and comes back with an account_id query parameter.
type AccountProvider struct {
	network registry.Network
	rpc     *httpx.Client
	appName string
	now     func() time.Time
}

func NewAccountProvider(network registry.Network, rpc *httpx.Client) *AccountProvider {
	return &AccountProvider{
		network: network,
		rpc:     rpc,
		appName: "yetify",
		now:     time.Now,
	}
}

func (p *AccountProvider) Name() string { return "near" }

func (p *AccountProvider) Flow() Flow { return FlowRedirect }

func (p *AccountProvider) Connect(context.Context) (Session, error) {
	return Session{}, ErrRedirectRequired
}

// AuthorizeURL builds the wallet login URL. The wallet redirects back
// with account_id (and the granted key) appended to the success URL.
func (p *AccountProvider) AuthorizeURL(state string) (string, error) {
	base, err := url.Parse(p.network.WalletURL)
	if err != nil {
		return "", fmt.Errorf("parse wallet url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/login/"
	q := base.Query()
	q.Set("contract_id", p.network.ContractID)
	q.Set("title", p.appName)
	q.Set("state", state)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Exchange validates the returned account against the chain and
// builds the session. The wallet may also hand back the public key it
// granted to the app.
func (p *AccountProvider) Exchange(ctx context.Context, accountID string, params url.Values) (Session, error) {
	sess := Session{
		Provider:    p.Name(),
		Network:     p.network.Name,
		AccountID:   accountID,
		PublicKey:   params.Get("public_key"),
		ConnectedAt: p.now().UTC(),
	}
	if sess.PublicKey == "" {
		if keys := params.Get("all_keys"); keys != "" {
			sess.PublicKey = strings.Split(keys, ",")[0]
		}
	}
	return p.Validate(ctx, sess)
}

type rpcQueryRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcQueryResponse struct {
	Result struct {
		Amount string `json:"amount"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
		Cause   struct {
			Name string `json:"name"`
		} `json:"cause"`
	} `json:"error"`
}

// Validate checks the account still exists and, when the session
// carries the granted key, that the key is still attached. A removed
// account or key reads as revocation.
func (p *AccountProvider) Validate(ctx context.Context, s Session) (Session, error) {
	if s.AccountID == "" {
		return Session{}, ErrSessionRevoked
	}
	params := map[string]any{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   s.AccountID,
	}
	if s.PublicKey != "" {
		params["request_type"] = "view_access_key"
		params["public_key"] = s.PublicKey
	}
	var resp rpcQueryResponse
	req := rpcQueryRequest{JSONRPC: "2.0", ID: "yetify", Method: "query", Params: params}
	if err := p.rpc.PostJSON(ctx, p.network.RPCURL, req, &resp); err != nil {
		return Session{}, clierr.Wrap(clierr.CodeTransient, "validate wallet session", err)
	}
	if resp.Error != nil {
		switch resp.Error.Cause.Name {
		case "UNKNOWN_ACCOUNT", "ACCESS_KEY_DOES_NOT_EXIST":
			return Session{}, ErrSessionRevoked
		}
		return Session{}, clierr.New(clierr.CodeTransient, fmt.Sprintf("wallet validation failed: %s", resp.Error.Message))
	}
	if resp.Result.Amount != "" {
		s.Balance = resp.Result.Amount
	}
	return s, nil
}
