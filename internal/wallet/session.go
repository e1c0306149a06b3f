package wallet

import "time"

// ConnectionState is the per-provider connection lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Flow distinguishes providers that resolve in-process from providers
// that require a full navigation round-trip.
type Flow string

const (
	FlowDirect   Flow = "direct"
	FlowRedirect Flow = "redirect"
)

// Session is an authenticated, provider-scoped handle used to
// authorize on-chain writes. Account-based providers fill AccountID,
// address-based providers fill Address; Identity returns whichever
// applies.
type Session struct {
	Provider    string    `json:"provider"`
	Network     string    `json:"network,omitempty"`
	AccountID   string    `json:"accountId,omitempty"`
	Address     string    `json:"address,omitempty"`
	PublicKey   string    `json:"publicKey,omitempty"`
	Balance     string    `json:"balance,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

func (s Session) Identity() string {
	if s.AccountID != "" {
		return s.AccountID
	}
	return s.Address
}

func (s Session) IsZero() bool {
	return s.Provider == "" && s.AccountID == "" && s.Address == ""
}
