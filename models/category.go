package models

// Category is the coarse waste classification used to match claims against
// photographic evidence. The numeric values are persisted inside audit notes
// and must stay stable.
type Category int

const (
	CategoryUnknown    Category = 0
	CategoryGeneral    Category = 1
	CategoryOrganic    Category = 2
	CategoryRecyclable Category = 3
	CategoryHazardous  Category = 4
)

// AllCategories lists every auditable category, in id order. Unknown is
// excluded because it is never a valid claim.
var AllCategories = []Category{
	CategoryGeneral,
	CategoryOrganic,
	CategoryRecyclable,
	CategoryHazardous,
}

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryOrganic:
		return "organic"
	case CategoryRecyclable:
		return "recyclable"
	case CategoryHazardous:
		return "hazardous"
	default:
		return "unknown"
	}
}

// CategoryFromID converts a persisted numeric id back to a Category.
// Out-of-range ids map to CategoryUnknown.
func CategoryFromID(id int) Category {
	if id < int(CategoryGeneral) || id > int(CategoryHazardous) {
		return CategoryUnknown
	}
	return Category(id)
}

// CategoryFromName parses a category name as emitted by the vision providers.
func CategoryFromName(name string) Category {
	switch name {
	case "general":
		return CategoryGeneral
	case "organic":
		return CategoryOrganic
	case "recyclable":
		return CategoryRecyclable
	case "hazardous":
		return CategoryHazardous
	default:
		return CategoryUnknown
	}
}

// CategoryForMaterial returns the canonical coarse category for a fine-grained
// material id. Material ids are allocated in blocks of one thousand per
// category (1xxx general, 2xxx organic, 3xxx recyclable, 4xxx hazardous), so
// the block prefix is authoritative. Ids outside the known blocks map to
// CategoryUnknown, which the decision engine treats as a claim inconsistency.
func CategoryForMaterial(materialID int) Category {
	return CategoryFromID(materialID / 1000)
}
