package wallet

import (
	"net/url"
	"testing"
	"time"
)

func TestResolveCallback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := PendingConnection{
		Provider:  "near",
		State:     "abcd1234",
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(9 * time.Minute),
	}
	stale := live
	stale.ExpiresAt = now.Add(-time.Second)

	cases := []struct {
		name        string
		pending     PendingConnection
		rawQuery    string
		wantAccount string
		wantOutcome CallbackOutcome
	}{
		{"no pending marker", PendingConnection{}, "account_id=alice.test", "", NotAPendingCallback},
		{"no account param", live, "tab=strategies", "", NotAPendingCallback},
		{"resolved", live, "account_id=alice.test&all_keys=ed25519:abc", "alice.test", CallbackResolved},
		{"expired", stale, "account_id=alice.test", "", CallbackExpired},
		{"expired without account is still a normal load", stale, "tab=strategies", "", NotAPendingCallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := url.ParseQuery(tc.rawQuery)
			if err != nil {
				t.Fatalf("bad query: %v", err)
			}
			account, outcome := ResolveCallback(tc.pending, params, now)
			if outcome != tc.wantOutcome {
				t.Fatalf("outcome = %d, want %d", outcome, tc.wantOutcome)
			}
			if account != tc.wantAccount {
				t.Fatalf("account = %q, want %q", account, tc.wantAccount)
			}
		})
	}
}

func TestPendingConnectionExpiry(t *testing.T) {
	now := time.Now().UTC()
	p := PendingConnection{Provider: "near", ExpiresAt: now.Add(time.Minute)}
	if p.ExpiredAt(now) {
		t.Fatalf("not yet expired")
	}
	if !p.ExpiredAt(now.Add(2 * time.Minute)) {
		t.Fatalf("should be expired")
	}
	// A marker with no expiry never expires on its own.
	open := PendingConnection{Provider: "near"}
	if open.ExpiredAt(now.Add(24 * time.Hour)) {
		t.Fatalf("zero expiry must not expire")
	}
}
