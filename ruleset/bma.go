package ruleset

import (
	"context"
	"fmt"
	"strings"

	"transaction-audit-engine/decision"
	"transaction-audit-engine/models"
)

// BMAKey identifies the Bangkok Metropolitan Administration policy.
const BMAKey = "bma"

// BMARuleSet is the municipal policy. Compared to the default it halves the
// contamination tolerance, tolerates general waste detected in a recyclable
// claim (mixed street collection is common), and flags hazardous
// mislabelling as a reportable violation.
type BMARuleSet struct {
	workers int
}

func NewBMARuleSet(workers int) *BMARuleSet {
	return &BMARuleSet{workers: workers}
}

func (r *BMARuleSet) Key() string {
	return BMAKey
}

func (r *BMARuleSet) Policy() decision.PolicyConfig {
	return decision.PolicyConfig{
		ContaminationThresholdPct: 10,
		ThresholdOverrides: map[models.Category]float64{
			// Recyclable loads keep the default tolerance: sorting happens
			// downstream at the materials recovery facility.
			models.CategoryRecyclable: 20,
		},
		Tolerance: map[models.Category][]models.Category{
			models.CategoryRecyclable: {models.CategoryGeneral},
		},
	}.Normalize()
}

func (r *BMARuleSet) Execute(ctx context.Context, auditor Auditor, req ExecuteRequest) (*ExecuteResult, error) {
	result := runBatch(ctx, auditor, r.Key(), r.Policy(), req, r.workers)

	// Hazardous mislabelling must be escalated to the district office under
	// the municipal reporting rules; annotate those violations explicitly.
	for i := range result.Results {
		res := &result.Results[i]
		for _, v := range res.Violations {
			if strings.HasSuffix(v, decision.CodeHazardMismatch) {
				res.Violations = append(res.Violations,
					fmt.Sprintf("bma: hazardous mislabelling in transaction %s requires district office notification", res.TransactionID))
				break
			}
		}
	}

	return result, nil
}
