package coverage

import (
	"reflect"
	"testing"

	"transaction-audit-engine/models"
)

func record(c models.Category, refs ...string) models.TransactionRecord {
	return models.TransactionRecord{
		ID:              "r-" + c.String(),
		MaterialID:      int(c) * 1000,
		ClaimedCategory: c,
		ImageRefs:       refs,
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		records     []models.TransactionRecord
		policy      Policy
		wantStatus  models.CoverageStatus
		wantPresent []models.Category
		wantMissing []models.Category
	}{
		{
			name: "all four slots evidenced",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryOrganic, "img://2"),
				record(models.CategoryRecyclable, "img://3"),
				record(models.CategoryHazardous, "img://4"),
			},
			policy:     DefaultPolicy(),
			wantStatus: models.CoverageOK,
			wantPresent: []models.Category{
				models.CategoryGeneral, models.CategoryOrganic,
				models.CategoryRecyclable, models.CategoryHazardous,
			},
		},
		{
			name: "missing slot is insufficient",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryOrganic, "img://2"),
				record(models.CategoryRecyclable, "img://3"),
			},
			policy:     DefaultPolicy(),
			wantStatus: models.CoverageInsufficient,
			wantPresent: []models.Category{
				models.CategoryGeneral, models.CategoryOrganic, models.CategoryRecyclable,
			},
			wantMissing: []models.Category{models.CategoryHazardous},
		},
		{
			name: "record without images does not count",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryOrganic),
				record(models.CategoryRecyclable, "img://3"),
				record(models.CategoryHazardous, "img://4"),
			},
			policy:     DefaultPolicy(),
			wantStatus: models.CoverageInsufficient,
			wantPresent: []models.Category{
				models.CategoryGeneral, models.CategoryRecyclable, models.CategoryHazardous,
			},
			wantMissing: []models.Category{models.CategoryOrganic},
		},
		{
			name: "blank refs do not count as evidence",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, ""),
				record(models.CategoryOrganic, "img://2"),
				record(models.CategoryRecyclable, "img://3"),
				record(models.CategoryHazardous, "img://4"),
			},
			policy:     DefaultPolicy(),
			wantStatus: models.CoverageInsufficient,
			wantPresent: []models.Category{
				models.CategoryOrganic, models.CategoryRecyclable, models.CategoryHazardous,
			},
			wantMissing: []models.Category{models.CategoryGeneral},
		},
		{
			name: "duplicate slots only count once",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryGeneral, "img://2"),
				record(models.CategoryGeneral, "img://3"),
				record(models.CategoryGeneral, "img://4"),
			},
			policy:      DefaultPolicy(),
			wantStatus:  models.CoverageInsufficient,
			wantPresent: []models.Category{models.CategoryGeneral},
			wantMissing: []models.Category{
				models.CategoryOrganic, models.CategoryRecyclable, models.CategoryHazardous,
			},
		},
		{
			name: "relaxed minimum tolerates a missing slot",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryOrganic, "img://2"),
				record(models.CategoryRecyclable, "img://3"),
			},
			policy: Policy{
				Required: append([]models.Category(nil), models.AllCategories...),
				Minimum:  3,
			},
			wantStatus: models.CoverageOK,
			wantPresent: []models.Category{
				models.CategoryGeneral, models.CategoryOrganic, models.CategoryRecyclable,
			},
			wantMissing: []models.Category{models.CategoryHazardous},
		},
		{
			name: "relaxed minimum still fails below the bar",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryOrganic, "img://2"),
			},
			policy: Policy{
				Required: append([]models.Category(nil), models.AllCategories...),
				Minimum:  3,
			},
			wantStatus: models.CoverageInsufficient,
			wantPresent: []models.Category{
				models.CategoryGeneral, models.CategoryOrganic,
			},
			wantMissing: []models.Category{models.CategoryRecyclable, models.CategoryHazardous},
		},
		{
			name: "narrow policy with two slots",
			records: []models.TransactionRecord{
				record(models.CategoryGeneral, "img://1"),
				record(models.CategoryRecyclable, "img://2"),
			},
			policy: Policy{
				Required: []models.Category{models.CategoryGeneral, models.CategoryRecyclable},
				Minimum:  2,
			},
			wantStatus:  models.CoverageOK,
			wantPresent: []models.Category{models.CategoryGeneral, models.CategoryRecyclable},
		},
		{
			name:        "no records at all",
			records:     nil,
			policy:      DefaultPolicy(),
			wantStatus:  models.CoverageInsufficient,
			wantMissing: append([]models.Category(nil), models.AllCategories...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.records, tt.policy)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if !reflect.DeepEqual(got.Present, tt.wantPresent) {
				t.Errorf("Present = %v, want %v", got.Present, tt.wantPresent)
			}
			if !reflect.DeepEqual(got.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", got.Missing, tt.wantMissing)
			}
		})
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	records := []models.TransactionRecord{
		record(models.CategoryHazardous, "img://4"),
		record(models.CategoryGeneral, "img://1"),
		record(models.CategoryRecyclable, "img://3"),
	}
	first := Check(records, DefaultPolicy())
	for i := 0; i < 10; i++ {
		if got := Check(records, DefaultPolicy()); !reflect.DeepEqual(got, first) {
			t.Fatalf("Check() not deterministic: %+v vs %+v", got, first)
		}
	}
}
