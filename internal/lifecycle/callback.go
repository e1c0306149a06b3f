package lifecycle

import (
	"context"
	"net/url"
	"strings"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
)

const (
	txHashesParam  = "transactionHashes"
	errorCodeParam = "errorCode"
)

// TransactionOutcome is the result of parsing a post-write landing
// URL.
type TransactionOutcome struct {
	TransactionHash string
	ErrorCode       string
}

func (o TransactionOutcome) IsZero() bool {
	return o.TransactionHash == "" && o.ErrorCode == ""
}

// ResolveTransactionCallback extracts the ledger outcome the wallet
// appended to the landing URL after a redirect-signed write. Wallets
// return a comma-separated hash list; the last entry is the commit.
// Pure; no I/O.
func ResolveTransactionCallback(params url.Values) TransactionOutcome {
	if code := params.Get(errorCodeParam); code != "" {
		return TransactionOutcome{ErrorCode: code}
	}
	hashes := params.Get(txHashesParam)
	if hashes == "" {
		return TransactionOutcome{}
	}
	parts := strings.Split(hashes, ",")
	return TransactionOutcome{TransactionHash: strings.TrimSpace(parts[len(parts)-1])}
}

// RecordTransactionOutcome parses a landing URL and reflects the
// outcome of a redirect-signed write into the strategy's history.
func (c *Coordinator) RecordTransactionOutcome(ctx context.Context, strategyID, landingURL string) (strategy.SavedStrategy, error) {
	parsed, err := url.Parse(landingURL)
	if err != nil {
		return strategy.SavedStrategy{}, clierr.Wrap(clierr.CodeUsage, "parse landing url", err)
	}
	outcome := ResolveTransactionCallback(parsed.Query())
	if outcome.IsZero() {
		return strategy.SavedStrategy{}, clierr.New(clierr.CodeUsage, "landing url carries no transaction outcome")
	}

	record := strategy.NewExecutionRecord{Status: strategy.RecordCompleted, TransactionHash: outcome.TransactionHash}
	if outcome.ErrorCode != "" {
		record = strategy.NewExecutionRecord{Status: strategy.RecordFailed, ErrorMessage: "wallet reported " + outcome.ErrorCode}
	}
	if !c.tracker.AddExecutionRecord(ctx, strategyID, record) {
		return strategy.SavedStrategy{}, clierr.New(clierr.CodeNotFound, "strategy not found: "+strategyID)
	}
	updated, _ := c.store.GetByID(ctx, strategyID)
	return updated, nil
}
