package wallet

import (
	"context"
	"errors"
	"net/url"
)

// ErrSessionRevoked is returned by Validate when the provider reports
// that a persisted session is no longer authorized. The connector
// reacts by resetting to Disconnected instead of serving stale data.
var ErrSessionRevoked = errors.New("wallet session revoked by provider")

// ErrRedirectRequired is returned by Connect on providers that cannot
// resolve in-process; callers must follow the redirect flow instead.
var ErrRedirectRequired = errors.New("provider requires redirect connection")

// Provider is one wallet backend. A provider either connects directly
// (popup/extension/local key) or through a redirect round-trip, and
// both flows resolve into the same Session representation.
type Provider interface {
	Name() string
	Flow() Flow

	// Connect resolves a session in-process. Redirect providers
	// return ErrRedirectRequired.
	Connect(ctx context.Context) (Session, error)

	// AuthorizeURL returns the provider's authorization URL for a
	// redirect connect. The state token ties the callback to the
	// pending marker. Direct providers return an error.
	AuthorizeURL(state string) (string, error)

	// Exchange turns callback parameters into a validated session.
	Exchange(ctx context.Context, accountID string, params url.Values) (Session, error)

	// Validate re-validates a persisted session with the provider.
	// Returns ErrSessionRevoked when the provider no longer honors
	// it, or another error for transient validation failures.
	Validate(ctx context.Context, s Session) (Session, error)
}
