package lifecycle

import (
	"context"
	"net/url"
	"testing"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
)

func TestResolveTransactionCallback(t *testing.T) {
	cases := []struct {
		name     string
		rawQuery string
		want     TransactionOutcome
	}{
		{"no outcome", "tab=strategies", TransactionOutcome{}},
		{"single hash", "transactionHashes=8x1abc", TransactionOutcome{TransactionHash: "8x1abc"}},
		{"last hash is the commit", "transactionHashes=8x1abc,8x2def,8x3ghi", TransactionOutcome{TransactionHash: "8x3ghi"}},
		{"error code", "errorCode=userRejected", TransactionOutcome{ErrorCode: "userRejected"}},
		{"error wins over hashes", "transactionHashes=8x1abc&errorCode=userRejected", TransactionOutcome{ErrorCode: "userRejected"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := url.ParseQuery(tc.rawQuery)
			if err != nil {
				t.Fatalf("bad query: %v", err)
			}
			if got := ResolveTransactionCallback(params); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRecordTransactionOutcomeCompleted(t *testing.T) {
	f := newFixture(t, true)
	saved := f.saveStrategy(t)

	updated, err := f.coordinator.RecordTransactionOutcome(context.Background(), saved.ID,
		"https://app.example/?transactionHashes=8x1abc,8x2def")
	if err != nil {
		t.Fatalf("RecordTransactionOutcome failed: %v", err)
	}
	if updated.Status != strategy.StatusCompleted {
		t.Fatalf("status = %s", updated.Status)
	}
	if len(updated.ExecutionHistory) != 1 || updated.ExecutionHistory[0].TransactionHash != "8x2def" {
		t.Fatalf("unexpected history: %+v", updated.ExecutionHistory)
	}
}

func TestRecordTransactionOutcomeFailed(t *testing.T) {
	f := newFixture(t, true)
	saved := f.saveStrategy(t)

	updated, err := f.coordinator.RecordTransactionOutcome(context.Background(), saved.ID,
		"https://app.example/?errorCode=userRejected")
	if err != nil {
		t.Fatalf("RecordTransactionOutcome failed: %v", err)
	}
	if updated.Status != strategy.StatusFailed {
		t.Fatalf("status = %s", updated.Status)
	}
	rec := updated.ExecutionHistory[0]
	if rec.Status != strategy.RecordFailed || rec.ErrorMessage == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRecordTransactionOutcomeUsageErrors(t *testing.T) {
	f := newFixture(t, true)
	saved := f.saveStrategy(t)

	if _, err := f.coordinator.RecordTransactionOutcome(context.Background(), saved.ID,
		"https://app.example/dashboard"); clierr.CodeOf(err) != clierr.CodeUsage {
		t.Fatalf("expected usage error for a landing url without outcome, got %v", err)
	}
	if _, err := f.coordinator.RecordTransactionOutcome(context.Background(), "strategy_missing",
		"https://app.example/?transactionHashes=8x1abc"); clierr.CodeOf(err) != clierr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
