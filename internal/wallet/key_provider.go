package wallet

import (
	"context"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/yetify/yetify-cli/internal/wallet/signer"
)

// KeyProvider is the address-based wallet backend. It connects
// directly from a locally held key, so no redirect round-trip is
// involved.
type KeyProvider struct {
	rpcURL    string
	newSigner func() (signer.Signer, error)
	now       func() time.Time
}

func NewKeyProvider(rpcURL string) *KeyProvider {
	return &KeyProvider{
		rpcURL: rpcURL,
		newSigner: func() (signer.Signer, error) {
			return signer.NewLocalSigner(signer.ConfigFromEnv())
		},
		now: time.Now,
	}
}

func (p *KeyProvider) Name() string { return "evm" }

func (p *KeyProvider) Flow() Flow { return FlowDirect }

// Connect derives the address from the local key. Balance is fetched
// best effort; an unreachable RPC does not block the connection.
func (p *KeyProvider) Connect(ctx context.Context) (Session, error) {
	s, err := p.newSigner()
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Provider:    p.Name(),
		Address:     s.Address().Hex(),
		ConnectedAt: p.now().UTC(),
	}
	if balance, ok := p.fetchBalance(ctx, sess.Address); ok {
		sess.Balance = balance
	}
	return sess, nil
}

func (p *KeyProvider) AuthorizeURL(string) (string, error) {
	return "", ErrRedirectRequired
}

func (p *KeyProvider) Exchange(context.Context, string, url.Values) (Session, error) {
	return Session{}, ErrRedirectRequired
}

// Validate reloads the key and checks it still derives the session's
// address. A missing or changed key reads as revocation.
func (p *KeyProvider) Validate(ctx context.Context, sess Session) (Session, error) {
	s, err := p.newSigner()
	if err != nil {
		return Session{}, ErrSessionRevoked
	}
	if s.Address().Hex() != sess.Address {
		return Session{}, ErrSessionRevoked
	}
	if balance, ok := p.fetchBalance(ctx, sess.Address); ok {
		sess.Balance = balance
	}
	return sess, nil
}

func (p *KeyProvider) fetchBalance(ctx context.Context, address string) (string, bool) {
	client, err := ethclient.DialContext(ctx, p.rpcURL)
	if err != nil {
		return "", false
	}
	defer client.Close()
	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return "", false
	}
	return balance.String(), true
}

// SetSignerFactory overrides key loading. Tests only.
func (p *KeyProvider) SetSignerFactory(fn func() (signer.Signer, error)) { p.newSigner = fn }
