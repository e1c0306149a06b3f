package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"sync"
	"time"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/rs/zerolog"
)

// DefaultPendingTTL bounds how long a redirect connect may stay
// pending before the marker is treated as abandoned.
const DefaultPendingTTL = 10 * time.Minute

// Connector owns connection state for the registered wallet
// providers. It is constructed once and held for the lifetime of the
// session; all state transitions go through it.
type Connector struct {
	mu         sync.Mutex
	providers  map[string]Provider
	state      StateStore
	states     map[string]ConnectionState
	pendingTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewConnector(state StateStore, log zerolog.Logger, providers ...Provider) *Connector {
	byName := make(map[string]Provider, len(providers))
	states := make(map[string]ConnectionState, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
		states[p.Name()] = StateDisconnected
	}
	return &Connector{
		providers:  byName,
		state:      state,
		states:     states,
		pendingTTL: DefaultPendingTTL,
		log:        log.With().Str("component", "wallet_connector").Logger(),
		now:        time.Now,
	}
}

// ConnectResult reports how a Connect call resolved. Redirect
// providers hand back the URL to navigate to; direct providers hand
// back the established session.
type ConnectResult struct {
	State       ConnectionState
	Session     Session
	RedirectURL string
}

var errUnknownProvider = errors.New("unknown wallet provider")

// Connect moves a provider from Disconnected toward Connected. It is
// idempotent while Connecting: a second call returns the pending
// state without starting another popup or redirect, and a call on an
// already connected provider returns the existing session.
func (c *Connector) Connect(ctx context.Context, providerName string) (ConnectResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.providers[providerName]
	if !ok {
		return ConnectResult{}, errUnknownProvider
	}

	switch c.states[providerName] {
	case StateConnected:
		sess, ok, err := c.state.GetSession(ctx, providerName)
		if err == nil && ok {
			return ConnectResult{State: StateConnected, Session: sess}, nil
		}
	case StateConnecting:
		return ConnectResult{State: StateConnecting}, nil
	}

	if p.Flow() == FlowDirect {
		c.states[providerName] = StateConnecting
		sess, err := p.Connect(ctx)
		if err != nil {
			c.states[providerName] = StateDisconnected
			return ConnectResult{}, clierr.Wrap(clierr.CodeRejected, "wallet connection failed", err)
		}
		if err := c.state.PutSession(ctx, sess); err != nil {
			c.states[providerName] = StateDisconnected
			return ConnectResult{}, clierr.Wrap(clierr.CodeStorage, "persist wallet session", err)
		}
		c.states[providerName] = StateConnected
		c.log.Info().Str("provider", providerName).Str("identity", sess.Identity()).Msg("wallet connected")
		return ConnectResult{State: StateConnected, Session: sess}, nil
	}

	// Redirect flow: persist the pending marker before handing out
	// the navigation URL, so the round-trip can be recovered after a
	// full reload.
	state := newStateToken()
	now := c.now().UTC()
	pending := PendingConnection{
		Provider:  providerName,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(c.pendingTTL),
	}
	redirect, err := p.AuthorizeURL(state)
	if err != nil {
		return ConnectResult{}, clierr.Wrap(clierr.CodeInternal, "build authorization url", err)
	}
	if err := c.state.PutPending(ctx, pending); err != nil {
		return ConnectResult{}, clierr.Wrap(clierr.CodeStorage, "persist pending connection", err)
	}
	c.states[providerName] = StateConnecting
	c.log.Info().Str("provider", providerName).Msg("redirect connection started")
	return ConnectResult{State: StateConnecting, RedirectURL: redirect}, nil
}

// HandleCallback inspects a landing URL for redirect-callback
// parameters and, when they complete a pending connection, exchanges
// them for a session and clears the marker. A landing URL that is not
// a callback resolves to (zero, false, nil).
func (c *Connector) HandleCallback(ctx context.Context, landingURL string) (Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parsed, err := url.Parse(landingURL)
	if err != nil {
		return Session{}, false, clierr.Wrap(clierr.CodeUsage, "parse landing url", err)
	}
	params := parsed.Query()

	pending, ok, err := c.state.GetPending(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("read pending connection failed")
		return Session{}, false, nil
	}
	if !ok {
		pending = PendingConnection{}
	}

	accountID, outcome := ResolveCallback(pending, params, c.now().UTC())
	switch outcome {
	case NotAPendingCallback:
		return Session{}, false, nil
	case CallbackExpired:
		_ = c.state.ClearPending(ctx)
		c.states[pending.Provider] = StateDisconnected
		c.log.Info().Str("provider", pending.Provider).Msg("pending connection expired")
		return Session{}, false, clierr.New(clierr.CodeTimeout, "pending wallet connection expired, reconnect")
	}

	p, known := c.providers[pending.Provider]
	if !known {
		_ = c.state.ClearPending(ctx)
		return Session{}, false, errUnknownProvider
	}
	sess, err := p.Exchange(ctx, accountID, params)
	if err != nil {
		c.states[pending.Provider] = StateDisconnected
		return Session{}, false, clierr.Wrap(clierr.CodeTransient, "exchange wallet callback", err)
	}
	if err := c.state.PutSession(ctx, sess); err != nil {
		c.states[pending.Provider] = StateDisconnected
		return Session{}, false, clierr.Wrap(clierr.CodeStorage, "persist wallet session", err)
	}
	_ = c.state.ClearPending(ctx)
	c.states[pending.Provider] = StateConnected
	c.log.Info().Str("provider", pending.Provider).Str("identity", sess.Identity()).Msg("redirect connection resolved")
	return sess, true, nil
}

// Reconnect restores persisted sessions on startup. Each session is
// re-validated with its provider before the connector reports
// Connected; a failed validation silently resets to Disconnected.
func (c *Connector) Reconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, p := range c.providers {
		sess, ok, err := c.state.GetSession(ctx, name)
		if err != nil || !ok {
			continue
		}
		validated, err := p.Validate(ctx, sess)
		if err != nil {
			_ = c.state.DeleteSession(ctx, name)
			c.states[name] = StateDisconnected
			c.log.Debug().Str("provider", name).Err(err).Msg("persisted session dropped on reconnect")
			continue
		}
		_ = c.state.PutSession(ctx, validated)
		c.states[name] = StateConnected
	}

	// An outstanding redirect round-trip survives restarts through its
	// marker. Expired markers are abandoned here.
	pending, ok, err := c.state.GetPending(ctx)
	if err != nil || !ok {
		return
	}
	if pending.ExpiredAt(c.now().UTC()) {
		_ = c.state.ClearPending(ctx)
		return
	}
	if _, known := c.providers[pending.Provider]; known && c.states[pending.Provider] == StateDisconnected {
		c.states[pending.Provider] = StateConnecting
	}
}

// IsConnected reports whether the provider holds a live session. A
// session the provider reports revoked forces a transition back to
// Disconnected rather than reporting stale data.
func (c *Connector) IsConnected(ctx context.Context, providerName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[providerName] != StateConnected {
		return false
	}
	p, ok := c.providers[providerName]
	if !ok {
		return false
	}
	sess, ok, err := c.state.GetSession(ctx, providerName)
	if err != nil || !ok {
		c.states[providerName] = StateDisconnected
		return false
	}
	if _, err := p.Validate(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			_ = c.state.DeleteSession(ctx, providerName)
			c.states[providerName] = StateDisconnected
			c.log.Info().Str("provider", providerName).Msg("session revoked by provider")
			return false
		}
		// Transient validation failure: keep the session, report the
		// last known state.
	}
	return true
}

// State returns the current connection state for a provider.
func (c *Connector) State(providerName string) ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[providerName]
	if !ok {
		return StateDisconnected
	}
	return state
}

// Session returns the persisted session for a connected provider.
func (c *Connector) Session(ctx context.Context, providerName string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states[providerName] != StateConnected {
		return Session{}, false
	}
	sess, ok, err := c.state.GetSession(ctx, providerName)
	if err != nil || !ok {
		return Session{}, false
	}
	return sess, true
}

// Disconnect drops the provider's session. Calling it while already
// Disconnected is a no-op success.
func (c *Connector) Disconnect(ctx context.Context, providerName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[providerName] == StateDisconnected {
		return nil
	}
	if err := c.state.DeleteSession(ctx, providerName); err != nil {
		c.log.Warn().Err(err).Str("provider", providerName).Msg("delete session failed")
	}
	_ = c.state.ClearPending(ctx)
	c.states[providerName] = StateDisconnected
	c.log.Info().Str("provider", providerName).Msg("wallet disconnected")
	return nil
}

// SetPendingTTL overrides the pending-connection expiry window.
func (c *Connector) SetPendingTTL(ttl time.Duration) { c.pendingTTL = ttl }

// SetNow overrides the connector clock. Tests only.
func (c *Connector) SetNow(now func() time.Time) { c.now = now }

func newStateToken() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "connect"
	}
	return hex.EncodeToString(b)
}
