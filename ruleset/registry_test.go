package ruleset

import (
	"context"
	"errors"
	"testing"
	"time"

	"transaction-audit-engine/decision"
	"transaction-audit-engine/models"
)

// fakeAuditor returns a canned approve note per transaction, or fails for ids
// listed in failIDs.
type fakeAuditor struct {
	failIDs map[string]bool
	calls   int
}

func (f *fakeAuditor) AuditTransaction(ctx context.Context, transactionID string, policy decision.PolicyConfig, ruleSetKey string) (*models.Transaction, *models.AuditNote, error) {
	f.calls++
	if f.failIDs[transactionID] {
		return nil, nil, errors.New("simulated audit failure")
	}
	tx := &models.Transaction{ID: transactionID, OrganizationID: "org-1"}
	note := &models.AuditNote{
		Version: models.AuditNoteVersion,
		RuleSet: ruleSetKey,
		Step1:   models.CoverageResult{Status: models.CoverageOK},
		Step2: map[string]models.MaterialAuditEntry{
			transactionID + "-r1": {
				ClaimedType: models.CategoryGeneral,
				Status:      models.StatusApprove,
				Confidence:  0.9,
				Debug:       models.DebugTrail{Decision: models.DecisionTrail{Code: decision.CodePass, Status: models.StatusApprove}},
			},
		},
		CreatedAt: time.Now().UTC(),
	}
	return tx, note, nil
}

// panicRuleSet explodes on execution.
type panicRuleSet struct{}

func (panicRuleSet) Key() string                   { return "panic" }
func (panicRuleSet) Policy() decision.PolicyConfig { return decision.DefaultPolicy() }
func (panicRuleSet) Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error) {
	panic("policy bug")
}

// truncatedRuleSet returns fewer results than transactions.
type truncatedRuleSet struct{}

func (truncatedRuleSet) Key() string                   { return "truncated" }
func (truncatedRuleSet) Policy() decision.PolicyConfig { return decision.DefaultPolicy() }
func (truncatedRuleSet) Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error) {
	return &ExecuteResult{Success: true, RuleSet: "truncated", Results: []TransactionResult{}}, nil
}

func newTestRegistry(auditor Auditor, lookup BindingLookup) *Registry {
	r := NewRegistry(auditor, lookup)
	r.Register(NewDefaultRuleSet(2))
	r.Register(NewBMARuleSet(2))
	return r
}

func TestResolveIsTotal(t *testing.T) {
	auditor := &fakeAuditor{}

	tests := []struct {
		name    string
		lookup  BindingLookup
		wantKey string
	}{
		{
			name:    "nil lookup resolves default",
			lookup:  nil,
			wantKey: DefaultKey,
		},
		{
			name: "configured bma resolves bma",
			lookup: func(ctx context.Context, org string) (string, error) {
				return BMAKey, nil
			},
			wantKey: BMAKey,
		},
		{
			name: "empty binding resolves default",
			lookup: func(ctx context.Context, org string) (string, error) {
				return "", nil
			},
			wantKey: DefaultKey,
		},
		{
			name: "unknown key falls back to default",
			lookup: func(ctx context.Context, org string) (string, error) {
				return "singapore-nea", nil
			},
			wantKey: DefaultKey,
		},
		{
			name: "lookup error falls back to default",
			lookup: func(ctx context.Context, org string) (string, error) {
				return "", errors.New("db down")
			},
			wantKey: DefaultKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(auditor, tt.lookup)
			rs := r.Resolve(context.Background(), "org-1")
			if rs == nil {
				t.Fatal("Resolve() returned nil")
			}
			if rs.Key() != tt.wantKey {
				t.Errorf("Key() = %q, want %q", rs.Key(), tt.wantKey)
			}
		})
	}
}

func TestExecuteSucceeds(t *testing.T) {
	auditor := &fakeAuditor{}
	r := newTestRegistry(auditor, nil)

	result := r.Execute(context.Background(), "org-1", []string{"tx-1", "tx-2"}, nil)
	if !result.Success {
		t.Fatalf("Success = false: %+v", result)
	}
	if result.RuleSet != DefaultKey {
		t.Errorf("RuleSet = %q, want default", result.RuleSet)
	}
	if len(result.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(result.Results))
	}
	for _, res := range result.Results {
		if res.AuditStatus != string(models.StatusApprove) {
			t.Errorf("transaction %s status = %q, want approve", res.TransactionID, res.AuditStatus)
		}
	}
}

func TestExecutePerTransactionFailureDoesNotAbortBatch(t *testing.T) {
	auditor := &fakeAuditor{failIDs: map[string]bool{"tx-2": true}}
	r := newTestRegistry(auditor, nil)

	result := r.Execute(context.Background(), "org-1", []string{"tx-1", "tx-2", "tx-3"}, nil)
	if !result.Success {
		t.Fatalf("batch should succeed despite a per-transaction failure: %+v", result)
	}
	byID := map[string]TransactionResult{}
	for _, res := range result.Results {
		byID[res.TransactionID] = res
	}
	if byID["tx-1"].AuditStatus != string(models.StatusApprove) {
		t.Errorf("tx-1 = %q, want approve", byID["tx-1"].AuditStatus)
	}
	if byID["tx-2"].AuditStatus != string(models.StatusPending) {
		t.Errorf("tx-2 = %q, want pending", byID["tx-2"].AuditStatus)
	}
	if byID["tx-3"].AuditStatus != string(models.StatusApprove) {
		t.Errorf("tx-3 = %q, want approve", byID["tx-3"].AuditStatus)
	}
}

func TestExecutePanickingRuleSetFallsBackToDefault(t *testing.T) {
	auditor := &fakeAuditor{}
	lookup := func(ctx context.Context, org string) (string, error) { return "panic", nil }

	r := newTestRegistry(auditor, lookup)
	r.Register(panicRuleSet{})

	result := r.Execute(context.Background(), "org-1", []string{"tx-1"}, nil)
	if !result.Success {
		t.Fatalf("fallback should succeed: %+v", result)
	}
	if result.RuleSet != DefaultKey {
		t.Errorf("RuleSet = %q, want default after fallback", result.RuleSet)
	}
	if auditor.calls != 1 {
		t.Errorf("auditor calls = %d, want 1 (default pass only)", auditor.calls)
	}
}

func TestExecuteMalformedResultFallsBackToDefault(t *testing.T) {
	auditor := &fakeAuditor{}
	lookup := func(ctx context.Context, org string) (string, error) { return "truncated", nil }

	r := newTestRegistry(auditor, lookup)
	r.Register(truncatedRuleSet{})

	result := r.Execute(context.Background(), "org-1", []string{"tx-1", "tx-2"}, nil)
	if !result.Success {
		t.Fatalf("fallback should succeed: %+v", result)
	}
	if result.RuleSet != DefaultKey {
		t.Errorf("RuleSet = %q, want default after fallback", result.RuleSet)
	}
	if len(result.Results) != 2 {
		t.Errorf("Results = %d, want 2", len(result.Results))
	}
}

func TestExecuteDefaultFailureYieldsPendingBatch(t *testing.T) {
	auditor := &fakeAuditor{}
	r := NewRegistry(auditor, nil)
	// Register a broken implementation under the default key.
	r.Register(brokenDefault{})

	result := r.Execute(context.Background(), "org-1", []string{"tx-1", "tx-2"}, nil)
	if result.Success {
		t.Error("Success = true, want false when default itself fails")
	}
	if len(result.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(result.Results))
	}
	for _, res := range result.Results {
		if res.AuditStatus != string(models.StatusPending) {
			t.Errorf("transaction %s = %q, want pending", res.TransactionID, res.AuditStatus)
		}
	}
}

type brokenDefault struct{}

func (brokenDefault) Key() string                   { return DefaultKey }
func (brokenDefault) Policy() decision.PolicyConfig { return decision.DefaultPolicy() }
func (brokenDefault) Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error) {
	return nil, errors.New("persistent failure")
}
