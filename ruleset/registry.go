package ruleset

import (
	"context"
	"fmt"
	"sync"

	"transaction-audit-engine/models"

	"github.com/apex/log"
)

// BindingLookup resolves an organization to its configured rule set key.
// An empty key means "nothing configured"; the registry maps that to default.
type BindingLookup func(ctx context.Context, organizationID string) (string, error)

// Registry maps rule set keys to implementations and organizations to keys.
// Resolution is total: unknown or unconfigured organizations always get the
// default rule set, never an error.
type Registry struct {
	mu      sync.RWMutex
	impls   map[string]RuleSet
	lookup  BindingLookup
	auditor Auditor
}

// NewRegistry creates a registry. lookup may be nil, in which case every
// organization resolves to default.
func NewRegistry(auditor Auditor, lookup BindingLookup) *Registry {
	return &Registry{
		impls:   make(map[string]RuleSet),
		lookup:  lookup,
		auditor: auditor,
	}
}

// Register adds a rule set implementation. The default rule set must be
// registered before the registry is used.
func (r *Registry) Register(rs RuleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[rs.Key()] = rs
}

// Resolve returns the active rule set for an organization. Lookup failures
// and unknown keys fall back to default.
func (r *Registry) Resolve(ctx context.Context, organizationID string) RuleSet {
	key := ""
	if r.lookup != nil {
		k, err := r.lookup(ctx, organizationID)
		if err != nil {
			log.WithError(err).WithField("organization_id", organizationID).
				Warn("rule set lookup failed, using default")
		} else {
			key = k
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if rs, ok := r.impls[key]; ok {
		return rs
	}
	if key != "" {
		log.WithFields(log.Fields{
			"organization_id": organizationID,
			"rule_set":        key,
		}).Warn("unknown rule set configured, using default")
	}
	return r.impls[DefaultKey]
}

// Execute resolves the organization's rule set and runs it over the batch.
// A policy that panics, errors, or returns a malformed result does not
// corrupt the batch: the registry falls back to the default rule set for the
// organization's transactions and logs the failure.
func (r *Registry) Execute(ctx context.Context, organizationID string, transactionIDs []string, body []byte) *ExecuteResult {
	req := ExecuteRequest{
		OrganizationID: organizationID,
		TransactionIDs: transactionIDs,
		Body:           body,
	}

	rs := r.Resolve(ctx, organizationID)
	result, err := r.executeSafely(ctx, rs, req)
	if err == nil {
		return result
	}

	log.WithError(err).WithFields(log.Fields{
		"organization_id": organizationID,
		"rule_set":        rs.Key(),
	}).Error("rule set failed, falling back to default")

	if rs.Key() == DefaultKey {
		// Default itself failed; surface a pending batch rather than no result.
		return failedResult(organizationID, transactionIDs, err)
	}

	r.mu.RLock()
	fallback := r.impls[DefaultKey]
	r.mu.RUnlock()

	result, err = r.executeSafely(ctx, fallback, req)
	if err != nil {
		log.WithError(err).WithField("organization_id", organizationID).
			Error("default rule set failed after fallback")
		return failedResult(organizationID, transactionIDs, err)
	}
	return result
}

// executeSafely runs a rule set, converting panics and malformed results
// into errors.
func (r *Registry) executeSafely(ctx context.Context, rs RuleSet, req ExecuteRequest) (result *ExecuteResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("rule set %s panicked: %v", rs.Key(), rec)
		}
	}()

	result, err = rs.Execute(ctx, r.auditor, req)
	if err != nil {
		return nil, fmt.Errorf("rule set %s failed: %w", rs.Key(), err)
	}
	if result == nil || len(result.Results) != len(req.TransactionIDs) {
		return nil, fmt.Errorf("rule set %s returned a malformed result", rs.Key())
	}
	return result, nil
}

func failedResult(organizationID string, transactionIDs []string, err error) *ExecuteResult {
	results := make([]TransactionResult, len(transactionIDs))
	for i, id := range transactionIDs {
		results[i] = TransactionResult{
			TransactionID: id,
			AuditStatus:   string(models.StatusPending),
			Message:       "audit engine failure: " + err.Error(),
			Audits:        []EntrySummary{},
			Violations:    []string{},
		}
	}
	return &ExecuteResult{
		Success:           false,
		RuleSet:           DefaultKey,
		OrganizationID:    organizationID,
		TotalTransactions: len(transactionIDs),
		Results:           results,
	}
}
