// Package domain defines the core types and interfaces for the recipe
// manager. All other packages depend on domain; domain depends on nothing.
package domain

// RecipeHeader is the stable identity of a recipe across all its versions.
type RecipeHeader struct {
	ID                  string
	Title               string
	Category            Category
	ImageURL            string
	DefaultPrepTimeMins int // 0 means no default prep time
	IsFavorite          bool
}

// RecipeVersion is one concrete variant of a recipe under a shared header:
// its own ingredient lines, direction steps, and an optional prep-time
// override. CreatedAt is epoch millis and drives the default recency order.
type RecipeVersion struct {
	ID                   string
	HeaderID             string
	Name                 string
	Commentary           string
	Ingredients          []Ingredient
	Directions           []InstructionStep
	OverridePrepTimeMins int // 0 means no override
	CreatedAt            int64
}

// PrepTimeMins returns the effective prep time for this version: the
// version's override when set, the header's default otherwise.
func (v *RecipeVersion) PrepTimeMins(header *RecipeHeader) int {
	if v.OverridePrepTimeMins > 0 {
		return v.OverridePrepTimeMins
	}
	return header.DefaultPrepTimeMins
}

// Ingredient is one line item within a version. DisplayName is the
// user-editable text, independent of the catalog entry it resolves against.
type Ingredient struct {
	ID          string
	DisplayName string
	Standard    StandardIngredient
	Quantity    float64
	Unit        MeasureUnit
}

// InstructionStep is one direction step within a version.
type InstructionStep struct {
	ID          string
	Description string
	Timer       *TimerInfo // nil when the step is untimed
}

// TimerInfo is an optional per-step countdown, in whole seconds.
type TimerInfo struct {
	DurationSeconds int64
}

// FullRecipe pairs a header with one selected version.
type FullRecipe struct {
	Header          RecipeHeader
	SelectedVersion RecipeVersion
}

// RecipeDetails is everything a detail screen needs: the header, every
// version, and the one currently selected.
type RecipeDetails struct {
	Header          RecipeHeader
	AllVersions     []RecipeVersion
	SelectedVersion *RecipeVersion
}
