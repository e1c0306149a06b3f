package wallet

import (
	"net/url"
	"time"
)

// PendingConnection is the marker persisted before a redirect-based
// connect navigates away. It survives the page round-trip in local
// storage and expires after a bounded window; a stale marker is
// treated as abandoned, never resumed.
type PendingConnection struct {
	Provider  string    `json:"provider"`
	Network   string    `json:"network,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (p PendingConnection) IsZero() bool { return p.Provider == "" }

func (p PendingConnection) ExpiredAt(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// CallbackOutcome classifies what a landing URL means for a pending
// connection.
type CallbackOutcome int

const (
	// NotAPendingCallback: there is no pending marker, or the landing
	// parameters carry no account identifier. A normal page load.
	NotAPendingCallback CallbackOutcome = iota
	// CallbackExpired: a marker exists but its window has elapsed.
	CallbackExpired
	// CallbackResolved: the landing parameters complete the pending
	// connection; the returned account id identifies the session.
	CallbackResolved
)

const accountParam = "account_id"

// ResolveCallback decides, purely from the pending marker and the
// landing-URL query parameters, whether this load completes a
// redirect connection. It performs no I/O; the connector acts on the
// outcome.
func ResolveCallback(pending PendingConnection, params url.Values, now time.Time) (string, CallbackOutcome) {
	if pending.IsZero() {
		return "", NotAPendingCallback
	}
	accountID := params.Get(accountParam)
	if accountID == "" {
		return "", NotAPendingCallback
	}
	if pending.ExpiredAt(now) {
		return "", CallbackExpired
	}
	return accountID, CallbackResolved
}
