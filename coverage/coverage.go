// Package coverage implements the minimum-evidence check that runs before any
// per-material auditing. It is a pure function of record metadata: no
// provider calls happen here, and it must run first so transactions without
// enough evidence short-circuit the expensive classification stage.
package coverage

import (
	"sort"

	"transaction-audit-engine/models"
)

// Policy configures the coverage check.
type Policy struct {
	// Required is the set of material slots the policy expects evidence for.
	// Defaults to all four coarse categories.
	Required []models.Category
	// Minimum is the number of distinct required slots that must be
	// evidenced for the transaction to pass. Clamped to len(Required).
	Minimum int
}

// DefaultPolicy returns the stock coverage policy: all four categories
// required, all four evidenced.
func DefaultPolicy() Policy {
	return Policy{
		Required: append([]models.Category(nil), models.AllCategories...),
		Minimum:  4,
	}
}

// Check evaluates the transaction's records against the policy and produces
// the step-1 coverage record. A slot counts as present when at least one
// record claiming that slot carries at least one non-empty image reference.
func Check(records []models.TransactionRecord, policy Policy) models.CoverageResult {
	required := policy.Required
	if len(required) == 0 {
		required = models.AllCategories
	}

	minimum := policy.Minimum
	if minimum > len(required) {
		minimum = len(required)
	}
	if minimum < 1 {
		minimum = 1
	}

	requiredSet := make(map[models.Category]bool, len(required))
	for _, c := range required {
		requiredSet[c] = true
	}

	presentSet := make(map[models.Category]bool)
	for i := range records {
		r := &records[i]
		if requiredSet[r.ClaimedCategory] && r.HasEvidence() {
			presentSet[r.ClaimedCategory] = true
		}
	}

	var present, missing []models.Category
	for _, c := range required {
		if presentSet[c] {
			present = append(present, c)
		} else {
			missing = append(missing, c)
		}
	}
	sortCategories(present)
	sortCategories(missing)

	// Status is driven by the minimum alone; missing slots are still
	// reported so affected entries can be downgraded individually.
	status := models.CoverageOK
	if len(present) < minimum {
		status = models.CoverageInsufficient
	}

	return models.CoverageResult{
		Status:   status,
		Required: sortedCopy(required),
		Present:  present,
		Missing:  missing,
	}
}

func sortCategories(cats []models.Category) {
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
}

func sortedCopy(cats []models.Category) []models.Category {
	out := append([]models.Category(nil), cats...)
	sortCategories(out)
	return out
}
