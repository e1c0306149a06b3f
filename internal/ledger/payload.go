package ledger

import (
	"encoding/json"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
)

// The on-chain strategy-storage contract takes the strategy as a JSON
// document with snake_case field names. Creator and created_at are
// stamped by the contract itself, never sent.
type contractStep struct {
	Action      string   `json:"action"`
	Protocol    string   `json:"protocol"`
	Asset       string   `json:"asset"`
	ExpectedAPY *float64 `json:"expected_apy,omitempty"`
	Amount      string   `json:"amount,omitempty"`
}

type contractStrategy struct {
	ID           string         `json:"id"`
	Goal         string         `json:"goal"`
	Chains       []string       `json:"chains"`
	Protocols    []string       `json:"protocols"`
	Steps        []contractStep `json:"steps"`
	RiskLevel    string         `json:"risk_level"`
	EstimatedAPY *float64       `json:"estimated_apy,omitempty"`
	EstimatedTVL string         `json:"estimated_tvl,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// SerializePlan renders the plan into the contract's wire form. The
// contract rejects strategies without an id, so a missing id is a
// fatal protocol error caught before anything touches the network.
func SerializePlan(plan strategy.Plan) ([]byte, error) {
	if plan.ID == "" {
		return nil, clierr.New(clierr.CodeFatal, "strategy id is required for on-chain storage")
	}
	steps := make([]contractStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		steps = append(steps, contractStep{
			Action:      s.Action,
			Protocol:    s.Protocol,
			Asset:       s.Asset,
			ExpectedAPY: s.ExpectedAPY,
			Amount:      s.Amount,
		})
	}
	payload := contractStrategy{
		ID:           plan.ID,
		Goal:         plan.Goal,
		Chains:       plan.Chains,
		Protocols:    plan.Protocols,
		Steps:        steps,
		RiskLevel:    plan.RiskLevel,
		EstimatedAPY: plan.EstimatedAPY,
		EstimatedTVL: plan.EstimatedTVL,
		Confidence:   plan.Confidence,
		Reasoning:    plan.Reasoning,
		Warnings:     plan.Warnings,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeFatal, "serialize strategy", err)
	}
	return buf, nil
}
