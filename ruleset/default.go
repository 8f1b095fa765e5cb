package ruleset

import (
	"context"

	"transaction-audit-engine/decision"
)

// DefaultKey is the rule set every unconfigured organization resolves to.
const DefaultKey = "default"

// DefaultRuleSet runs the full audit pipeline with the stock policy. It is
// also the safe fallback the registry switches to when a configured policy
// fails.
type DefaultRuleSet struct {
	workers int
}

// NewDefaultRuleSet creates the default policy with the given per-batch
// transaction worker count.
func NewDefaultRuleSet(workers int) *DefaultRuleSet {
	return &DefaultRuleSet{workers: workers}
}

func (r *DefaultRuleSet) Key() string {
	return DefaultKey
}

func (r *DefaultRuleSet) Policy() decision.PolicyConfig {
	return decision.DefaultPolicy()
}

func (r *DefaultRuleSet) Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error) {
	return runBatch(ctx, auditor, r.Key(), r.Policy(), req, r.workers), nil
}
