// Package decision implements the rule-based decision engine that turns a
// claimed category plus classifier output into a per-material verdict.
// All thresholds come from the active rule set's PolicyConfig; the engine
// itself is policy-agnostic.
package decision

import (
	"fmt"

	"transaction-audit-engine/models"
)

// Decision codes, ordered by precedence. Hazard mislabelling beats category
// mismatch, which beats contamination.
const (
	CodePass              = "PASS"
	CodeNoEvidence        = "NO_EVIDENCE"
	CodeNotVisible        = "NOT_VISIBLE"
	CodeDegradedRead      = "DEGRADED_READ"
	CodeMaterialMismatch  = "MATERIAL_ID_MISMATCH"
	CodeHazardMismatch    = "HAZARD_MISMATCH"
	CodeTypeMismatch      = "TYPE_MISMATCH"
	CodeContamination     = "CONTAMINATION_EXCEEDED"
	CodeCoverageShortfall = "COVERAGE_SHORTFALL"
)

// Outcome is a decision trail plus its confidence score.
type Outcome struct {
	Trail      models.DecisionTrail
	Confidence float64
}

// CheckClaim validates that a record's fine-grained material id is consistent
// with the coarse category the submitter declared for it. An inconsistent
// claim is rejected before any provider call is spent on it.
func CheckClaim(materialID int, claimed models.Category, p PolicyConfig) (Outcome, bool) {
	canonical := models.CategoryForMaterial(materialID)
	if canonical == claimed && claimed != models.CategoryUnknown {
		return Outcome{}, true
	}
	return Outcome{
		Trail: models.DecisionTrail{
			Code:         CodeMaterialMismatch,
			Status:       models.StatusReject,
			DetectedType: canonical,
			WarningItems: []string{fmt.Sprintf("material %d belongs to category %s, claimed %s", materialID, canonical, claimed)},
		},
		Confidence: p.MismatchConfidence,
	}, false
}

// Decide applies the policy to one claimed category and one classifier read.
// Precedence: degraded read > hazard override > category mismatch >
// contamination threshold.
func Decide(claimed models.Category, cls models.ClassifyResult, p PolicyConfig) Outcome {
	// 1. Degraded or unreadable classification: never approve on it.
	if cls.Degraded || cls.MainContent == models.CategoryUnknown {
		return Outcome{
			Trail: models.DecisionTrail{
				Code:         CodeDegradedRead,
				Status:       models.StatusPending,
				DetectedType: models.CategoryUnknown,
			},
			Confidence: p.DegradedConfidence,
		}
	}

	// 2. Hazardous material in a non-hazardous claim is a hard stop.
	if cls.HazDetected && claimed != models.CategoryHazardous {
		warnings := append([]string{"hazardous material detected"}, cls.ContaminationItems...)
		return Outcome{
			Trail: models.DecisionTrail{
				Code:         CodeHazardMismatch,
				Status:       models.StatusReject,
				DetectedType: cls.MainContent,
				WarningItems: warnings,
			},
			Confidence: p.HazardConfidence,
		}
	}

	// 3. Detected category must match the claim, modulo policy tolerance.
	if !p.Accepts(claimed, cls.MainContent) {
		return Outcome{
			Trail: models.DecisionTrail{
				Code:         CodeTypeMismatch,
				Status:       models.StatusReject,
				DetectedType: cls.MainContent,
				WarningItems: []string{fmt.Sprintf("detected %s, claimed %s", cls.MainContent, claimed)},
			},
			Confidence: p.MismatchConfidence,
		}
	}

	// 4. Categories match: contamination decides.
	threshold := p.ThresholdFor(claimed)
	if cls.ContaminationPct <= threshold {
		return Outcome{
			Trail: models.DecisionTrail{
				Code:         CodePass,
				Status:       models.StatusApprove,
				DetectedType: cls.MainContent,
			},
			Confidence: approveConfidence(cls.ContaminationPct, threshold),
		}
	}

	return Outcome{
		Trail: models.DecisionTrail{
			Code:         CodeContamination,
			Status:       models.StatusReject,
			DetectedType: cls.MainContent,
			WarningItems: append([]string(nil), cls.ContaminationItems...),
		},
		Confidence: rejectConfidence(cls.ContaminationPct, threshold),
	}
}

// Pending builds the short-circuit outcomes used when classification never
// ran: missing evidence, unreadable images, or a step-1 coverage shortfall.
func Pending(code string, p PolicyConfig) Outcome {
	confidence := 0.0
	if code == CodeNotVisible || code == CodeDegradedRead {
		confidence = p.DegradedConfidence
	}
	return Outcome{
		Trail: models.DecisionTrail{
			Code:         code,
			Status:       models.StatusPending,
			DetectedType: models.CategoryUnknown,
		},
		Confidence: confidence,
	}
}

// approveConfidence scales from 1.0 at zero contamination down to 0.5 when
// contamination sits exactly at the threshold.
func approveConfidence(pct, threshold float64) float64 {
	if threshold <= 0 {
		return 1.0
	}
	c := 1.0 - 0.5*(pct/threshold)
	if c < 0.5 {
		c = 0.5
	}
	return c
}

// rejectConfidence scales from 0.5 just over the threshold up to 1.0 when the
// load is entirely contaminated.
func rejectConfidence(pct, threshold float64) float64 {
	if threshold >= 100 {
		return 0.5
	}
	over := (pct - threshold) / (100 - threshold)
	if over > 1 {
		over = 1
	}
	if over < 0 {
		over = 0
	}
	return 0.5 + 0.5*over
}
