// Package mockdata produces synthetic transactions spanning the six canonical
// correctness scenarios used to validate the audit engine end-to-end. The
// generated image references use the mock:// grammar understood by the
// stubvision provider, so a full pipeline run needs no network.
package mockdata

import (
	"context"
	"fmt"
	"sync"

	"transaction-audit-engine/models"

	"github.com/google/uuid"
)

// Scenario names one canonical correctness case.
type Scenario string

const (
	ScenarioCorrect             Scenario = "correct"
	ScenarioNoImages            Scenario = "no_images"
	ScenarioWrongImageType      Scenario = "wrong_image_type"
	ScenarioWrongCount          Scenario = "wrong_count"
	ScenarioWrongMaterialID     Scenario = "wrong_material_id"
	ScenarioUnknownSourceImages Scenario = "unknown_source_images"
)

// AllScenarios lists every scenario in a stable order.
var AllScenarios = []Scenario{
	ScenarioCorrect,
	ScenarioNoImages,
	ScenarioWrongImageType,
	ScenarioWrongCount,
	ScenarioWrongMaterialID,
	ScenarioUnknownSourceImages,
}

// Expected is the acceptance outcome a scenario must produce under the
// default policy.
type Expected struct {
	CoverageStatus models.CoverageStatus
	// EntryStatus is the status every generated record must end up with.
	EntryStatus models.AuditStatus
}

// Outcomes maps each scenario to its expected audit result.
var Outcomes = map[Scenario]Expected{
	ScenarioCorrect:             {CoverageStatus: models.CoverageOK, EntryStatus: models.StatusApprove},
	ScenarioNoImages:            {CoverageStatus: models.CoverageInsufficient, EntryStatus: models.StatusPending},
	ScenarioWrongImageType:      {CoverageStatus: models.CoverageOK, EntryStatus: models.StatusReject},
	ScenarioWrongCount:          {CoverageStatus: models.CoverageInsufficient, EntryStatus: models.StatusPending},
	ScenarioWrongMaterialID:     {CoverageStatus: models.CoverageOK, EntryStatus: models.StatusReject},
	ScenarioUnknownSourceImages: {CoverageStatus: models.CoverageOK, EntryStatus: models.StatusPending},
}

// materialFor returns the canonical fine-grained material id for a category.
func materialFor(c models.Category) int {
	return int(c)*1000 + 1
}

// mismatchedCategory returns a different category, cycling through the four.
func mismatchedCategory(c models.Category) models.Category {
	next := models.Category(int(c)%len(models.AllCategories) + 1)
	return next
}

// Transaction generates one synthetic transaction for a scenario.
func Transaction(organizationID string, scenario Scenario) *models.Transaction {
	txID := uuid.NewString()
	t := &models.Transaction{
		ID:             txID,
		OrganizationID: organizationID,
		Channel:        "device",
	}

	categories := models.AllCategories
	if scenario == ScenarioWrongCount {
		// Fewer records than the coverage policy requires.
		categories = categories[:2]
	}

	for i, c := range categories {
		r := models.TransactionRecord{
			ID:              fmt.Sprintf("%s-r%d", txID, i+1),
			MaterialID:      materialFor(c),
			ClaimedCategory: c,
		}

		switch scenario {
		case ScenarioNoImages:
			// Half the records arrive without evidence.
			if i%2 == 0 {
				r.ImageRefs = []string{clearRef(c)}
			}
		case ScenarioWrongImageType:
			r.ImageRefs = []string{clearRef(mismatchedCategory(c))}
		case ScenarioWrongMaterialID:
			r.MaterialID = materialFor(mismatchedCategory(c))
			r.ImageRefs = []string{clearRef(c)}
		case ScenarioUnknownSourceImages:
			r.ImageRefs = []string{fmt.Sprintf("https://unknown-bucket.example.com/%s.jpg", r.ID)}
		default:
			r.ImageRefs = []string{clearRef(c)}
		}

		t.Records = append(t.Records, r)
	}

	return t
}

func clearRef(c models.Category) string {
	return fmt.Sprintf("mock://clear/%s?pct=5", c.String())
}

// maxWorkers caps the bulk generation pool.
const maxWorkers = 100

// Bulk generates count transactions per scenario and feeds each one to sink
// through a bounded worker pool. The first sink error cancels the run.
func Bulk(ctx context.Context, organizationID string, scenarios []Scenario, count int, workers int, sink func(*models.Transaction) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var firstErr error

	for _, scenario := range scenarios {
		for i := 0; i < count; i++ {
			select {
			case <-runCtx.Done():
				wg.Wait()
				return firstErr
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(scenario Scenario) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := sink(Transaction(organizationID, scenario)); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
				}
			}(scenario)
		}
	}

	wg.Wait()
	return firstErr
}
