// Package audit orchestrates the per-transaction pipeline: coverage check,
// image visibility gating, content classification, rule-based decision, and
// assembly of the persisted audit note.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"transaction-audit-engine/coverage"
	"transaction-audit-engine/decision"
	"transaction-audit-engine/metrics"
	"transaction-audit-engine/models"
	"transaction-audit-engine/quota"
	"transaction-audit-engine/vision"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Store is the persistence surface the auditor needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	SaveAuditNote(ctx context.Context, transactionID string, note *models.AuditNote) error
}

// VerdictPublisher broadcasts completed verdicts to downstream consumers.
type VerdictPublisher interface {
	Publish(message interface{}) error
}

// TransactionAudited is the message published after a verdict is persisted.
type TransactionAudited struct {
	TransactionID  string `json:"transaction_id"`
	OrganizationID string `json:"organization_id"`
	RuleSet        string `json:"rule_set"`
	AuditID        string `json:"audit_id"`
	Note           any    `json:"note"`
}

// Service audits transactions. One instance serves all organizations; the
// active policy arrives per call from the rule set registry.
type Service struct {
	store           Store
	caller          *vision.Caller
	publisher       VerdictPublisher
	usage           *quota.Tracker
	coverageMinimum int
	recordWorkers   int
}

// NewService wires the auditor. publisher and usage may be nil; auditing
// still works without them.
func NewService(store Store, caller *vision.Caller, publisher VerdictPublisher, usage *quota.Tracker, coverageMinimum, recordWorkers int) *Service {
	if coverageMinimum < 1 {
		coverageMinimum = 4
	}
	if recordWorkers < 1 {
		recordWorkers = 1
	}
	return &Service{
		store:           store,
		caller:          caller,
		publisher:       publisher,
		usage:           usage,
		coverageMinimum: coverageMinimum,
		recordWorkers:   recordWorkers,
	}
}

// AuditTransaction runs the full pipeline for one transaction and persists
// the resulting note. Re-running with unchanged evidence and an unchanged
// rule set overwrites the prior note with a structurally identical one.
func (s *Service) AuditTransaction(ctx context.Context, transactionID string, policy decision.PolicyConfig, ruleSetKey string) (*models.Transaction, *models.AuditNote, error) {
	start := time.Now()
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		metrics.AuditsProcessedTotal.WithLabelValues("fetch_error").Inc()
		return nil, nil, err
	}
	if tx.Retired {
		metrics.AuditsProcessedTotal.WithLabelValues("retired").Inc()
		return nil, nil, fmt.Errorf("transaction %s is retired", transactionID)
	}

	policy = policy.Normalize()
	if s.usage != nil {
		s.usage.AddCall(tx.OrganizationID)
	}

	// Step 1 runs before any provider call so transactions without enough
	// evidence never spend classifier quota.
	step1 := coverage.Check(tx.Records, coverage.Policy{
		Required: models.AllCategories,
		Minimum:  s.coverageMinimum,
	})

	entries := make([]models.MaterialAuditEntry, len(tx.Records))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.recordWorkers)
	for i := range tx.Records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			entries[i] = s.auditRecord(ctx, tx.OrganizationID, &tx.Records[i], step1.Status, policy)
		}(i)
	}
	wg.Wait()

	step2 := make(map[string]models.MaterialAuditEntry, len(tx.Records))
	for i := range tx.Records {
		step2[tx.Records[i].ID] = entries[i]
		metrics.EntriesTotal.WithLabelValues(string(entries[i].Status)).Inc()
	}

	note := &models.AuditNote{
		Version:   models.AuditNoteVersion,
		AuditID:   uuid.NewString(),
		RuleSet:   ruleSetKey,
		Step1:     step1,
		Step2:     step2,
		CreatedAt: time.Now().UTC(),
	}

	// A failed write is retried once; after that the transaction stays in
	// the not-yet-audited state rather than carrying a false verdict.
	if err := s.store.SaveAuditNote(ctx, transactionID, note); err != nil {
		log.WithError(err).WithField("transaction_id", transactionID).Warn("audit note write failed, retrying once")
		if err := s.store.SaveAuditNote(ctx, transactionID, note); err != nil {
			metrics.AuditsProcessedTotal.WithLabelValues("persist_error").Inc()
			metrics.AuditDurationSeconds.WithLabelValues("persist_error").Observe(time.Since(start).Seconds())
			return nil, nil, fmt.Errorf("failed to persist audit note for %s: %w", transactionID, err)
		}
	}

	tx.Note = note
	tx.AuditedAt = note.CreatedAt

	s.publishVerdict(tx, note)

	metrics.AuditsProcessedTotal.WithLabelValues("ok").Inc()
	metrics.AuditDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return tx, note, nil
}

// auditRecord produces the step-2 entry for one material record.
func (s *Service) auditRecord(ctx context.Context, orgID string, r *models.TransactionRecord, covStatus models.CoverageStatus, policy decision.PolicyConfig) models.MaterialAuditEntry {
	// An inconsistent claim is rejected before spending provider calls on it.
	if outcome, ok := decision.CheckClaim(r.MaterialID, r.ClaimedCategory, policy); !ok {
		return entryWithoutProviders(r, outcome, "claim inconsistent, evidence not evaluated")
	}

	if !r.HasEvidence() {
		return entryWithoutProviders(r, decision.Pending(decision.CodeNoEvidence, policy), "no image evidence attached")
	}

	if covStatus == models.CoverageInsufficient {
		return entryWithoutProviders(r, decision.Pending(decision.CodeCoverageShortfall, policy), "transaction coverage insufficient, classification skipped")
	}

	// Visibility gate: find the first clear image. Opaque or unknown images
	// never reach the classifier.
	var gateResult *models.VisibilityResult
	var classifyResult *models.ClassifyResult
	for _, ref := range r.ImageRefs {
		if ref == "" {
			continue
		}
		vis := s.caller.Visibility(ctx, ref)
		s.addUnits(orgID, 1)
		if gateResult == nil {
			gateResult = vis
		}
		if vis.Status != models.VisibilityClear {
			continue
		}
		gateResult = vis

		cls := s.caller.Classify(ctx, ref, r.ClaimedCategory)
		s.addUnits(orgID, 1)
		classifyResult = cls
		if !cls.Degraded {
			break
		}
		// A degraded read on this image; another clear image may still work.
	}

	if gateResult == nil {
		// All refs were empty strings; treated the same as missing evidence.
		return entryWithoutProviders(r, decision.Pending(decision.CodeNoEvidence, policy), "no image evidence attached")
	}

	if classifyResult == nil {
		outcome := decision.Pending(decision.CodeNotVisible, policy)
		return models.MaterialAuditEntry{
			ClaimedType: r.ClaimedCategory,
			Status:      outcome.Trail.Status,
			Confidence:  outcome.Confidence,
			Debug: models.DebugTrail{
				VisibilityStatus: gateResult.Status,
				VisibilityReason: gateResult.Reason,
				VisibilityRaw:    gateResult.Raw,
				ClassifyParsed:   models.ClassifyResult{MainContent: models.CategoryUnknown},
				Decision:         outcome.Trail,
			},
		}
	}

	outcome := decision.Decide(r.ClaimedCategory, *classifyResult, policy)
	return models.MaterialAuditEntry{
		ClaimedType: r.ClaimedCategory,
		Status:      outcome.Trail.Status,
		Confidence:  outcome.Confidence,
		Debug: models.DebugTrail{
			VisibilityStatus: gateResult.Status,
			VisibilityReason: gateResult.Reason,
			VisibilityRaw:    gateResult.Raw,
			ClassifyParsed:   *classifyResult,
			ClassifyRaw:      classifyResult.Raw,
			Decision:         outcome.Trail,
		},
	}
}

func entryWithoutProviders(r *models.TransactionRecord, outcome decision.Outcome, reason string) models.MaterialAuditEntry {
	return models.MaterialAuditEntry{
		ClaimedType: r.ClaimedCategory,
		Status:      outcome.Trail.Status,
		Confidence:  outcome.Confidence,
		Debug: models.DebugTrail{
			VisibilityStatus: models.VisibilityUnknown,
			VisibilityReason: reason,
			ClassifyParsed:   models.ClassifyResult{MainContent: models.CategoryUnknown},
			Decision:         outcome.Trail,
		},
	}
}

func (s *Service) addUnits(orgID string, n int64) {
	if s.usage != nil {
		s.usage.AddProcessUnits(orgID, n)
	}
}

func (s *Service) publishVerdict(tx *models.Transaction, note *models.AuditNote) {
	if s.publisher == nil {
		return
	}
	wire, err := note.MarshalWire()
	if err != nil {
		log.WithError(err).WithField("transaction_id", tx.ID).Error("failed to marshal verdict for publish")
		metrics.PublishErrorTotal.Inc()
		return
	}
	msg := TransactionAudited{
		TransactionID:  tx.ID,
		OrganizationID: tx.OrganizationID,
		RuleSet:        note.RuleSet,
		AuditID:        note.AuditID,
		Note:           json.RawMessage(wire),
	}
	if err := s.publisher.Publish(msg); err != nil {
		log.WithError(err).WithField("transaction_id", tx.ID).Error("failed to publish verdict")
		metrics.PublishErrorTotal.Inc()
	}
}
