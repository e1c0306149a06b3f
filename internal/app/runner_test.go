package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// isolateState points every storage path at a temp directory so runs
// do not touch the user's real data.
func isolateState(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("YETIFY_STORE_PATH", filepath.Join(dir, "strategies.db"))
	t.Setenv("YETIFY_STORE_LOCK_PATH", filepath.Join(dir, "strategies.lock"))
	t.Setenv("YETIFY_WALLET_STATE_PATH", filepath.Join(dir, "wallet.db"))
	t.Setenv("YETIFY_CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("YETIFY_CACHE_LOCK_PATH", filepath.Join(dir, "cache.lock"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
}

func writePlanFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	plan := `{
		"goal": "Maximize stablecoin yield",
		"chains": ["NEAR"],
		"protocols": ["ref-finance"],
		"steps": [{"action": "deposit", "protocol": "ref-finance", "asset": "USDC", "amount": "1000"}],
		"riskLevel": "low"
	}`
	if err := os.WriteFile(path, []byte(plan), 0o600); err != nil {
		t.Fatalf("write plan file: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, Envelope, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	var env Envelope
	out := stdout.Bytes()
	if code != 0 {
		out = stderr.Bytes()
	}
	if len(bytes.TrimSpace(out)) > 0 {
		if err := json.Unmarshal(out, &env); err != nil {
			t.Fatalf("parse envelope: %v output=%s stderr=%s", err, stdout.String(), stderr.String())
		}
	}
	return code, env, stderr.String()
}

func TestRunnerSaveListGetDelete(t *testing.T) {
	isolateState(t)
	planFile := writePlanFile(t)

	code, env, stderr := runCLI(t, "save", "--plan-file", planFile, "--name", "stable yield", "--tags", "stable,usdc")
	if code != 0 {
		t.Fatalf("save exit %d stderr=%s", code, stderr)
	}
	if env.Success != true {
		t.Fatalf("save envelope: %+v", env)
	}
	saved, _ := env.Data.(map[string]any)
	id, _ := saved["id"].(string)
	if id == "" {
		t.Fatalf("save returned no id: %+v", env.Data)
	}
	if saved["status"] != "saved" {
		t.Fatalf("status = %v", saved["status"])
	}

	code, env, _ = runCLI(t, "list")
	if code != 0 {
		t.Fatalf("list exit %d", code)
	}
	items, _ := env.Data.([]any)
	if len(items) != 1 {
		t.Fatalf("list returned %d items", len(items))
	}

	code, env, _ = runCLI(t, "get", id)
	if code != 0 {
		t.Fatalf("get exit %d", code)
	}
	got, _ := env.Data.(map[string]any)
	if got["name"] != "stable yield" {
		t.Fatalf("get returned %+v", got)
	}

	code, env, _ = runCLI(t, "search", "usdc")
	if code != 0 {
		t.Fatalf("search exit %d", code)
	}
	if found, _ := env.Data.([]any); len(found) != 1 {
		t.Fatalf("search returned %d items", len(found))
	}

	code, env, _ = runCLI(t, "delete", id)
	if code != 0 {
		t.Fatalf("delete exit %d", code)
	}
	result, _ := env.Data.(map[string]any)
	if result["deleted"] != true {
		t.Fatalf("delete result: %+v", result)
	}
}

func TestRunnerGetUnknownStrategy(t *testing.T) {
	isolateState(t)

	code, env, _ := runCLI(t, "get", "strategy_missing")
	if code != 10 {
		t.Fatalf("expected not-found exit 10, got %d", code)
	}
	if env.Success || env.Error == nil || env.Error.Code != 10 {
		t.Fatalf("error envelope: %+v", env)
	}
}

func TestRunnerExecuteRequiresWallet(t *testing.T) {
	isolateState(t)
	planFile := writePlanFile(t)

	_, env, _ := runCLI(t, "save", "--plan-file", planFile)
	saved, _ := env.Data.(map[string]any)
	id, _ := saved["id"].(string)

	code, env, _ := runCLI(t, "execute", id)
	if code != 11 {
		t.Fatalf("expected precondition exit 11, got %d (%+v)", code, env)
	}

	// The failed gate left the strategy untouched.
	_, env, _ = runCLI(t, "get", id)
	got, _ := env.Data.(map[string]any)
	if got["status"] != "saved" {
		t.Fatalf("status after gated execute: %v", got["status"])
	}
}

func TestSplitTags(t *testing.T) {
	tags := splitTags(" stable, usdc ,,defi ")
	if len(tags) != 3 || tags[0] != "stable" || tags[1] != "usdc" || tags[2] != "defi" {
		t.Fatalf("unexpected tags: %#v", tags)
	}
	if splitTags("  ") != nil {
		t.Fatalf("blank input should yield nil")
	}
}
