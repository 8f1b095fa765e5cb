package models

import "time"

// AuditNoteVersion is the current schema version written into new notes.
const AuditNoteVersion = 2

// AuditStatus is the coarse per-material verdict.
type AuditStatus string

const (
	StatusApprove AuditStatus = "approve"
	StatusReject  AuditStatus = "reject"
	StatusPending AuditStatus = "pending"
)

// WireCode returns the single-letter code persisted in audit notes.
func (s AuditStatus) WireCode() string {
	switch s {
	case StatusApprove:
		return "a"
	case StatusReject:
		return "r"
	default:
		return "p"
	}
}

// StatusFromWire converts a persisted status code back to an AuditStatus.
// Unrecognized codes read back as pending, the conservative default.
func StatusFromWire(code string) AuditStatus {
	switch code {
	case "a":
		return StatusApprove
	case "r":
		return StatusReject
	default:
		return StatusPending
	}
}

// CoverageStatus is the step-1 outcome for a transaction.
type CoverageStatus string

const (
	CoverageOK           CoverageStatus = "ok"
	CoverageInsufficient CoverageStatus = "insufficient"
)

// VisibilityStatus classifies whether an image's contents are assessable.
type VisibilityStatus string

const (
	VisibilityClear   VisibilityStatus = "clear"
	VisibilityOpaque  VisibilityStatus = "opaque"
	VisibilityUnknown VisibilityStatus = "unknown"
)

// VisibilityResult is the parsed Visibility Gate output for one image, with
// the raw upstream response kept for diagnostics.
type VisibilityResult struct {
	Status VisibilityStatus
	Reason string
	Raw    string
}

// ClassifyResult is the parsed Content Classifier output for one clear image.
// Degraded marks a provider failure: the detected type is unknown and the
// decision engine must treat the entry conservatively.
type ClassifyResult struct {
	MainContent        Category
	ContaminationPct   float64
	ContaminationItems []string
	HazDetected        bool
	Degraded           bool
	Raw                string
}

// CoverageResult is the step-1 record of an audit note: which material slots
// the policy requires evidence for, which were actually evidenced, and the
// difference.
type CoverageResult struct {
	Status   CoverageStatus
	Required []Category
	Present  []Category
	Missing  []Category
}

// DecisionTrail is the decision engine's structured output for one material
// entry, retained verbatim in the debug trail.
type DecisionTrail struct {
	Code         string
	Status       AuditStatus
	DetectedType Category
	WarningItems []string
}

// DebugTrail carries the full diagnostic chain for one material entry so a
// verdict can be reconstructed after the fact.
type DebugTrail struct {
	VisibilityStatus VisibilityStatus
	VisibilityReason string
	VisibilityRaw    string
	ClassifyParsed   ClassifyResult
	ClassifyRaw      string
	Decision         DecisionTrail
}

// MaterialAuditEntry is the per-record verdict stored under step_2.
type MaterialAuditEntry struct {
	ClaimedType Category
	Status      AuditStatus
	Confidence  float64
	Debug       DebugTrail
}

// AuditNote is the structured verdict attached to a transaction. Step2 has
// exactly one entry per transaction record that was in scope for step 1,
// keyed by record id.
type AuditNote struct {
	Version   int
	AuditID   string
	RuleSet   string
	Step1     CoverageResult
	Step2     map[string]MaterialAuditEntry
	CreatedAt time.Time
}
