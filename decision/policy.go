package decision

import "transaction-audit-engine/models"

// PolicyConfig carries every number and table a rule set may override.
// A zero-valued field falls back to the default policy's value, so a rule set
// that declines to override anything still behaves correctly.
type PolicyConfig struct {
	// ContaminationThresholdPct is the highest contamination percentage a
	// matching load may carry and still be approved.
	ContaminationThresholdPct float64

	// ThresholdOverrides replaces the contamination threshold for specific
	// claimed categories.
	ThresholdOverrides map[models.Category]float64

	// Tolerance lists detected categories accepted as matching a claim in
	// addition to an exact match. A municipal policy may, for example, merge
	// general and recyclable tolerances.
	Tolerance map[models.Category][]models.Category

	// Confidence parameters.
	DegradedConfidence float64
	MismatchConfidence float64
	HazardConfidence   float64
}

// DefaultPolicy returns the stock policy used when an organization has no
// override configured.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		ContaminationThresholdPct: 20,
		DegradedConfidence:        0.25,
		MismatchConfidence:        0.85,
		HazardConfidence:          0.95,
	}
}

// Normalize fills zero-valued fields from the default policy. Rule sets call
// this once so a partial override never produces a degenerate config.
func (p PolicyConfig) Normalize() PolicyConfig {
	def := DefaultPolicy()
	if p.ContaminationThresholdPct <= 0 {
		p.ContaminationThresholdPct = def.ContaminationThresholdPct
	}
	if p.DegradedConfidence <= 0 {
		p.DegradedConfidence = def.DegradedConfidence
	}
	if p.MismatchConfidence <= 0 {
		p.MismatchConfidence = def.MismatchConfidence
	}
	if p.HazardConfidence <= 0 {
		p.HazardConfidence = def.HazardConfidence
	}
	return p
}

// ThresholdFor returns the contamination threshold for a claimed category.
func (p PolicyConfig) ThresholdFor(claimed models.Category) float64 {
	if p.ThresholdOverrides != nil {
		if t, ok := p.ThresholdOverrides[claimed]; ok && t > 0 {
			return t
		}
	}
	return p.ContaminationThresholdPct
}

// Accepts reports whether a detected category satisfies a claim. An exact
// match always does; the tolerance table widens specific claims. Hazardous
// never matches by tolerance: a hazardous claim must be evidenced as such.
func (p PolicyConfig) Accepts(claimed, detected models.Category) bool {
	if claimed == detected {
		return true
	}
	if detected == models.CategoryHazardous || claimed == models.CategoryHazardous {
		return false
	}
	for _, tolerated := range p.Tolerance[claimed] {
		if tolerated == detected {
			return true
		}
	}
	return false
}
