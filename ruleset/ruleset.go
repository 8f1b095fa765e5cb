// Package ruleset binds organizations to audit policies. Each rule set is a
// pluggable unit implementing one interface; new policies are added by
// registering an implementation, never by branching inside the engine.
package ruleset

import (
	"context"
	"encoding/json"

	"transaction-audit-engine/decision"
	"transaction-audit-engine/models"
)

// Auditor is the capability a rule set drives: audit one transaction under a
// given policy and persist the verdict. Implemented by the audit service.
type Auditor interface {
	AuditTransaction(ctx context.Context, transactionID string, policy decision.PolicyConfig, ruleSetKey string) (*models.Transaction, *models.AuditNote, error)
}

// ExecuteRequest is the batch-audit input a rule set receives.
type ExecuteRequest struct {
	OrganizationID string
	TransactionIDs []string
	// Body is the raw request payload, passed through untouched so a policy
	// can read organization-specific options without the engine knowing them.
	Body json.RawMessage
}

// EntrySummary is the per-material slice of a transaction result.
type EntrySummary struct {
	RecordID    string  `json:"record_id"`
	ClaimedType int     `json:"claimed_type"`
	AuditStatus string  `json:"audit_status"`
	Confidence  float64 `json:"confidence"`
	Code        string  `json:"code"`
}

// TransactionResult is one transaction's slice of an ExecuteResult.
type TransactionResult struct {
	TransactionID   string         `json:"transaction_id"`
	AuditStatus     string         `json:"audit_status"`
	ConfidenceScore float64        `json:"confidence_score"`
	Message         string         `json:"message"`
	Audits          []EntrySummary `json:"audits"`
	Violations      []string       `json:"violations"`
}

// ExecuteResult is the structured envelope every rule set must return.
type ExecuteResult struct {
	Success           bool                `json:"success"`
	RuleSet           string              `json:"rule_set"`
	OrganizationID    string              `json:"organization_id"`
	TotalTransactions int                 `json:"total_transactions"`
	Results           []TransactionResult `json:"results"`
	ProcessUnits      int64               `json:"process_units"`
}

// RuleSet is an organization-bound audit policy.
type RuleSet interface {
	// Key is the stable identifier organizations are bound to.
	Key() string
	// Policy returns the thresholds this rule set feeds the decision engine.
	Policy() decision.PolicyConfig
	// Execute audits a batch of transactions for an organization.
	Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error)
}
