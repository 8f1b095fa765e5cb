package ruleset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"transaction-audit-engine/decision"
	"transaction-audit-engine/models"

	"github.com/apex/log"
)

// runBatch drives the auditor over a batch of transaction ids with a bounded
// worker pool. Individual transaction failures (e.g. a persistence error)
// produce a pending result for that transaction only; they never abort the
// batch.
func runBatch(ctx context.Context, auditor Auditor, key string, policy decision.PolicyConfig, req ExecuteRequest, workers int) *ExecuteResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]TransactionResult, len(req.TransactionIDs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, txID := range req.TransactionIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, txID string) {
			defer wg.Done()
			defer func() { <-sem }()

			tx, note, err := auditor.AuditTransaction(ctx, txID, policy, key)
			if err != nil {
				log.WithError(err).WithField("transaction_id", txID).Error("audit failed, transaction stays unaudited")
				results[i] = TransactionResult{
					TransactionID: txID,
					AuditStatus:   string(models.StatusPending),
					Message:       "audit could not be completed: " + err.Error(),
					Audits:        []EntrySummary{},
					Violations:    []string{},
				}
				return
			}
			results[i] = summarize(tx, note)
		}(i, txID)
	}
	wg.Wait()

	return &ExecuteResult{
		Success:           true,
		RuleSet:           key,
		OrganizationID:    req.OrganizationID,
		TotalTransactions: len(req.TransactionIDs),
		Results:           results,
	}
}

// summarize rolls a persisted note up into the transaction-level result the
// plugin interface promises: reject beats pending beats approve, confidence
// is the mean over entries.
func summarize(tx *models.Transaction, note *models.AuditNote) TransactionResult {
	keys := make([]string, 0, len(note.Step2))
	for k := range note.Step2 {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	status := models.StatusApprove
	var confidenceSum float64
	var approved, rejected, pending int
	audits := make([]EntrySummary, 0, len(keys))
	violations := []string{}

	for _, k := range keys {
		e := note.Step2[k]
		confidenceSum += e.Confidence
		switch e.Status {
		case models.StatusReject:
			rejected++
			violations = append(violations, fmt.Sprintf("record %s: %s", k, e.Debug.Decision.Code))
		case models.StatusPending:
			pending++
		default:
			approved++
		}
		audits = append(audits, EntrySummary{
			RecordID:    k,
			ClaimedType: int(e.ClaimedType),
			AuditStatus: string(e.Status),
			Confidence:  e.Confidence,
			Code:        e.Debug.Decision.Code,
		})
	}

	if rejected > 0 {
		status = models.StatusReject
	} else if pending > 0 || len(keys) == 0 {
		status = models.StatusPending
	}

	confidence := 0.0
	if len(keys) > 0 {
		confidence = confidenceSum / float64(len(keys))
	}

	return TransactionResult{
		TransactionID:   tx.ID,
		AuditStatus:     string(status),
		ConfidenceScore: confidence,
		Message: fmt.Sprintf("%d materials audited: %d approved, %d rejected, %d pending (coverage %s)",
			len(keys), approved, rejected, pending, note.Step1.Status),
		Audits:     audits,
		Violations: violations,
	}
}
