package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// The wire types below define the persisted audit note schema. Field names
// are part of the storage contract consumed by dashboards and the approval
// workflow; do not rename them.

type noteWire struct {
	V       int                  `json:"v"`
	AuditID string               `json:"audit_id,omitempty"`
	RuleSet string               `json:"rule_set,omitempty"`
	Step1   step1Wire            `json:"step_1"`
	Step2   map[string]entryWire `json:"step_2"`
	TS      int64                `json:"ts,omitempty"`
}

type step1Wire struct {
	Status   string `json:"status"`
	Required []int  `json:"required"`
	Present  []int  `json:"present"`
	Missing  []int  `json:"missing"`
}

type entryWire struct {
	CT    int       `json:"ct"`
	AS    string    `json:"as"`
	CS    float64   `json:"cs"`
	Debug debugWire `json:"_debug"`
}

type debugWire struct {
	VisibilityStatus string       `json:"visibility_status"`
	VisibilityReason string       `json:"visibility_reason"`
	VisibilityRaw    string       `json:"visibility_raw"`
	ClassifyParsed   classifyWire `json:"classify_parsed"`
	ClassifyRaw      string       `json:"classify_raw"`
	Decision         decisionWire `json:"decision"`
}

type classifyWire struct {
	MainContent        int      `json:"main_content"`
	ContaminationPct   float64  `json:"contamination_pct"`
	ContaminationItems []string `json:"contamination_items"`
	HazDetected        bool     `json:"haz_detected"`
}

type decisionWire struct {
	Code   string   `json:"code"`
	Status string   `json:"status"`
	DT     int      `json:"dt"`
	WI     []string `json:"wi"`
}

func categoryIDs(cats []Category) []int {
	ids := make([]int, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, int(c))
	}
	sort.Ints(ids)
	return ids
}

func categoriesFromIDs(ids []int) []Category {
	cats := make([]Category, 0, len(ids))
	for _, id := range ids {
		cats = append(cats, CategoryFromID(id))
	}
	return cats
}

// MarshalWire serializes the note into the persisted schema.
func (n *AuditNote) MarshalWire() ([]byte, error) {
	w := noteWire{
		V:       n.Version,
		AuditID: n.AuditID,
		RuleSet: n.RuleSet,
		Step1: step1Wire{
			Status:   string(n.Step1.Status),
			Required: categoryIDs(n.Step1.Required),
			Present:  categoryIDs(n.Step1.Present),
			Missing:  categoryIDs(n.Step1.Missing),
		},
		Step2: make(map[string]entryWire, len(n.Step2)),
	}
	if !n.CreatedAt.IsZero() {
		w.TS = n.CreatedAt.Unix()
	}
	for key, e := range n.Step2 {
		items := e.Debug.ClassifyParsed.ContaminationItems
		if items == nil {
			items = []string{}
		}
		warnings := e.Debug.Decision.WarningItems
		if warnings == nil {
			warnings = []string{}
		}
		w.Step2[key] = entryWire{
			CT: int(e.ClaimedType),
			AS: e.Status.WireCode(),
			CS: e.Confidence,
			Debug: debugWire{
				VisibilityStatus: string(e.Debug.VisibilityStatus),
				VisibilityReason: e.Debug.VisibilityReason,
				VisibilityRaw:    e.Debug.VisibilityRaw,
				ClassifyParsed: classifyWire{
					MainContent:        int(e.Debug.ClassifyParsed.MainContent),
					ContaminationPct:   e.Debug.ClassifyParsed.ContaminationPct,
					ContaminationItems: items,
					HazDetected:        e.Debug.ClassifyParsed.HazDetected,
				},
				ClassifyRaw: e.Debug.ClassifyRaw,
				Decision: decisionWire{
					Code:   e.Debug.Decision.Code,
					Status: e.Debug.Decision.Status.WireCode(),
					DT:     int(e.Debug.Decision.DetectedType),
					WI:     warnings,
				},
			},
		}
	}
	return json.Marshal(w)
}

// ParseAuditNote deserializes a persisted audit note.
func ParseAuditNote(data []byte) (*AuditNote, error) {
	var w noteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse audit note: %w", err)
	}
	n := &AuditNote{
		Version: w.V,
		AuditID: w.AuditID,
		RuleSet: w.RuleSet,
		Step1: CoverageResult{
			Status:   CoverageStatus(w.Step1.Status),
			Required: categoriesFromIDs(w.Step1.Required),
			Present:  categoriesFromIDs(w.Step1.Present),
			Missing:  categoriesFromIDs(w.Step1.Missing),
		},
		Step2: make(map[string]MaterialAuditEntry, len(w.Step2)),
	}
	if w.TS > 0 {
		n.CreatedAt = time.Unix(w.TS, 0).UTC()
	}
	for key, e := range w.Step2 {
		n.Step2[key] = MaterialAuditEntry{
			ClaimedType: CategoryFromID(e.CT),
			Status:      StatusFromWire(e.AS),
			Confidence:  e.CS,
			Debug: DebugTrail{
				VisibilityStatus: VisibilityStatus(e.Debug.VisibilityStatus),
				VisibilityReason: e.Debug.VisibilityReason,
				VisibilityRaw:    e.Debug.VisibilityRaw,
				ClassifyParsed: ClassifyResult{
					MainContent:        CategoryFromID(e.Debug.ClassifyParsed.MainContent),
					ContaminationPct:   e.Debug.ClassifyParsed.ContaminationPct,
					ContaminationItems: e.Debug.ClassifyParsed.ContaminationItems,
					HazDetected:        e.Debug.ClassifyParsed.HazDetected,
				},
				ClassifyRaw: e.Debug.ClassifyRaw,
				Decision: DecisionTrail{
					Code:         e.Debug.Decision.Code,
					Status:       StatusFromWire(e.Debug.Decision.Status),
					DetectedType: CategoryFromID(e.Debug.Decision.DT),
					WarningItems: e.Debug.Decision.WI,
				},
			},
		}
	}
	return n, nil
}
