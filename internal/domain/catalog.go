package domain

// Category groups recipe headers. Optional on a header; missing or deleted
// categories fall back to Uncategorized.
type Category struct {
	ID   string
	Name string
}

// Uncategorized is the fallback category for headers without one.
var Uncategorized = Category{ID: "", Name: "Uncategorized"}

// MeasurementType classifies a measure unit.
type MeasurementType string

const (
	MeasurementVolume MeasurementType = "VOLUME"
	MeasurementWeight MeasurementType = "WEIGHT"
	MeasurementPiece  MeasurementType = "PIECE"
)

// MeasureUnit is a catalog measurement unit. ConversionFactor converts a
// quantity to the system base unit of its measurement type (g for weight,
// ml for volume) and is always > 0. System units are seeded built-ins,
// as opposed to user-defined ones.
type MeasureUnit struct {
	ID               string
	Name             string
	Abbreviation     string
	Type             MeasurementType
	ConversionFactor float64
	IsSystemUnit     bool
}

// ToBase converts a quantity in this unit to the system base unit.
func (u MeasureUnit) ToBase(quantity float64) float64 {
	return quantity * u.ConversionFactor
}

// StandardIngredient is a shared catalog entry ingredient lines resolve
// against. Density is grams per milliliter for future volume/weight
// conversion; 0 means unknown.
type StandardIngredient struct {
	ID      string
	Name    string
	Density float64
}

// NewStandard builds a pending catalog entry for an ingredient name the
// user typed with no catalog match. Pending entries carry no identity yet;
// the repository mints one and grows the catalog at save time.
func NewStandard(name string) StandardIngredient {
	return StandardIngredient{Name: name}
}

// IsPending reports whether this entry still needs a catalog identity.
func (s StandardIngredient) IsPending() bool {
	return s.ID == ""
}
