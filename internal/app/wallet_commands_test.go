package app

import (
	"strings"
	"testing"
)

func TestRunnerWalletRedirectFlow(t *testing.T) {
	isolateState(t)

	code, env, stderr := runCLI(t, "wallet", "connect")
	if code != 0 {
		t.Fatalf("connect exit %d stderr=%s", code, stderr)
	}
	data, _ := env.Data.(map[string]any)
	if data["state"] != "connecting" {
		t.Fatalf("state = %v", data["state"])
	}
	authorizeURL, _ := data["authorizeUrl"].(string)
	if !strings.Contains(authorizeURL, "/login/") || !strings.Contains(authorizeURL, "contract_id=") {
		t.Fatalf("authorizeUrl = %q", authorizeURL)
	}

	// The marker survives into the next invocation.
	code, env, _ = runCLI(t, "wallet", "status")
	if code != 0 {
		t.Fatalf("status exit %d", code)
	}
	data, _ = env.Data.(map[string]any)
	if data["state"] != "connecting" || data["connected"] != false {
		t.Fatalf("status after connect: %+v", data)
	}

	code, env, _ = runCLI(t, "wallet", "disconnect")
	if code != 0 {
		t.Fatalf("disconnect exit %d", code)
	}
	data, _ = env.Data.(map[string]any)
	if data["state"] != "disconnected" {
		t.Fatalf("disconnect result: %+v", data)
	}
}

func TestRunnerWalletCallbackWithoutPending(t *testing.T) {
	isolateState(t)

	code, env, _ := runCLI(t, "wallet", "callback", "--url", "https://app.example/dashboard")
	if code != 2 {
		t.Fatalf("expected usage exit 2, got %d (%+v)", code, env)
	}
}
