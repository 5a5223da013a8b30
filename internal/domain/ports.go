package domain

import "context"

// Repository is the single contract the rest of the app consumes for recipe
// data: CRUD, search, favorites, and the three versioning save variants.
// One-shot reads return (value, error) with ErrNotFound for absent rows;
// Watch methods push fresh results whenever the underlying store changes and
// close their channel when ctx is cancelled.
type Repository interface {
	// CreateRecipe persists a brand-new recipe. All ids are minted fresh,
	// regardless of what the caller supplied. Returns the new header id.
	CreateRecipe(ctx context.Context, header RecipeHeader, version RecipeVersion) (string, error)
	// SaveChanges overwrites an existing version in place, preserving the
	// header and version ids. Lines and steps are fully replaced.
	SaveChanges(ctx context.Context, header RecipeHeader, version RecipeVersion) error
	// SaveAsNewVersion branches: the header id is preserved, the version and
	// all its lines/steps get fresh ids, and the source version is untouched.
	SaveAsNewVersion(ctx context.Context, header RecipeHeader, version RecipeVersion) error
	// ImportParsed feeds the parser's result for url through CreateRecipe,
	// so an imported recipe takes the same id-minting and validation path
	// as a hand-typed one. Returns the new header id.
	ImportParsed(ctx context.Context, parser Parser, url string) (string, error)

	GetHeaders(ctx context.Context) ([]RecipeHeader, error)
	SearchRecipes(ctx context.Context, query string) ([]RecipeHeader, error)
	GetHeaderByID(ctx context.Context, id string) (*RecipeHeader, error)
	GetVersionsForRecipe(ctx context.Context, headerID string) ([]RecipeVersion, error)
	// GetRecipeDetails combines the header, all its versions, and the
	// selected one (falling back to the most recent) in a single call.
	GetRecipeDetails(ctx context.Context, headerID, versionID string) (*RecipeDetails, error)

	WatchHeaders(ctx context.Context) <-chan []RecipeHeader
	WatchFavorites(ctx context.Context) <-chan []RecipeHeader
	WatchHeaderByID(ctx context.Context, id string) <-chan *RecipeHeader
	WatchVersionsForRecipe(ctx context.Context, headerID string) <-chan []RecipeVersion
	// WatchIsFavorite derives favorite status by filtering the favorites
	// stream, so it never costs an extra query per header.
	WatchIsFavorite(ctx context.Context, headerID string) <-chan bool

	MarkFavorite(ctx context.Context, headerID string) error
	RemoveFavorite(ctx context.Context, headerID string) error
	// DeleteVersion removes a version and cascades to its lines and steps.
	// Deleting the last remaining version deletes the whole header.
	DeleteVersion(ctx context.Context, versionID string) error
	// DeleteHeader removes a header and cascades to all its versions.
	DeleteHeader(ctx context.Context, headerID string) error

	SearchStandardIngredients(ctx context.Context, query string) ([]StandardIngredient, error)
	AllMeasureUnits(ctx context.Context) ([]MeasureUnit, error)
}

// Catalog is the measurement catalog: immutable-ish lookup data for units
// and standard ingredients. Lookups are batched by design so assembling a
// version with many lines costs two queries, not one per line.
type Catalog interface {
	LookupUnits(ctx context.Context, ids []string) (map[string]MeasureUnit, error)
	LookupStandardIngredients(ctx context.Context, ids []string) (map[string]StandardIngredient, error)
	SearchStandardIngredients(ctx context.Context, query string) ([]StandardIngredient, error)
	// InsertStandardIngredient is an idempotent upsert. Inserting grows the
	// shared catalog permanently; entries are never scoped to one recipe.
	InsertStandardIngredient(ctx context.Context, entry StandardIngredient) error
	AllUnits(ctx context.Context) ([]MeasureUnit, error)
}

// Parser turns a source URL into a (header, version) pair shaped like a
// user-authored "create new recipe" submission. Failures are typed;
// a downed parsing service is ErrServiceUnavailable.
type Parser interface {
	ParseFromURL(ctx context.Context, url string) (*RecipeHeader, *RecipeVersion, error)
}

// AlertPlayer plays the timer-finished alert. Implementations can use the
// system audio device or do nothing in headless environments.
type AlertPlayer interface {
	PlayAlert() error
}
