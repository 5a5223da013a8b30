// Package repository implements the repository facade: the single contract
// the rest of the app consumes for recipe data. It assembles flat store rows
// into rich domain objects on reads, and enforces the version-branching id
// rules on writes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
	"github.com/kbenzarti/forkbook/internal/store"
)

// Compile-time interface check.
var _ domain.Repository = (*Repository)(nil)

// Repository is the default domain.Repository over the SQLite store and the
// measurement catalog.
type Repository struct {
	store   *store.Store
	catalog domain.Catalog
	log     *logger.Logger
}

// New creates a repository facade with the given dependencies.
func New(st *store.Store, cat domain.Catalog, log *logger.Logger) *Repository {
	return &Repository{store: st, catalog: cat, log: log}
}

// CreateRecipe persists a brand-new recipe. Every id is minted fresh here,
// regardless of what the caller passed in, so reusing a template object can
// never collide with an existing recipe. Returns the new header id.
func (r *Repository) CreateRecipe(ctx context.Context, header domain.RecipeHeader, version domain.RecipeVersion) (string, error) {
	if err := validate(header, version); err != nil {
		return "", err
	}

	header.ID = uuid.NewString()
	version.ID = uuid.NewString()
	version.HeaderID = header.ID
	for i := range version.Ingredients {
		version.Ingredients[i].ID = uuid.NewString()
	}
	for i := range version.Directions {
		version.Directions[i].ID = uuid.NewString()
	}
	if version.CreatedAt == 0 {
		version.CreatedAt = time.Now().UnixMilli()
	}

	if err := r.persistVersion(ctx, header, version); err != nil {
		return "", err
	}
	r.log.Info("created recipe %q (header=%s)", header.Title, header.ID)
	return header.ID, nil
}

// SaveChanges overwrites an existing version in place. Header and version
// ids are preserved exactly, so the underlying upserts update rows; lines
// and steps are fully replaced.
func (r *Repository) SaveChanges(ctx context.Context, header domain.RecipeHeader, version domain.RecipeVersion) error {
	if err := validate(header, version); err != nil {
		return err
	}
	if header.ID == "" || version.ID == "" {
		return fmt.Errorf("%w: saving changes requires existing header and version ids", domain.ErrValidation)
	}
	version.HeaderID = header.ID

	if err := r.persistVersion(ctx, header, version); err != nil {
		return err
	}
	r.log.Info("saved changes to version %s (header=%s)", version.ID, header.ID)
	return nil
}

// SaveAsNewVersion branches a version: the header id is preserved, the
// version and all of its lines and steps get fresh ids, re-linked to the
// (possibly updated) header. The source version is left untouched.
func (r *Repository) SaveAsNewVersion(ctx context.Context, header domain.RecipeHeader, version domain.RecipeVersion) error {
	if err := validate(header, version); err != nil {
		return err
	}
	if header.ID == "" {
		return fmt.Errorf("%w: branching requires an existing header id", domain.ErrValidation)
	}

	version.ID = uuid.NewString()
	version.HeaderID = header.ID
	for i := range version.Ingredients {
		version.Ingredients[i].ID = uuid.NewString()
	}
	for i := range version.Directions {
		version.Directions[i].ID = uuid.NewString()
	}
	if version.CreatedAt == 0 {
		version.CreatedAt = time.Now().UnixMilli()
	}

	if err := r.persistVersion(ctx, header, version); err != nil {
		return err
	}
	r.log.Info("branched version %q (version=%s, header=%s)", version.Name, version.ID, header.ID)
	return nil
}

// ImportParsed imports the recipe at url: the parser's (header, version)
// pair is handed to CreateRecipe unchanged, so an import mints ids and
// validates exactly like a hand-typed submission. Parser failures pass
// through untouched; they already carry the typed taxonomy.
func (r *Repository) ImportParsed(ctx context.Context, parser domain.Parser, url string) (string, error) {
	header, version, err := parser.ParseFromURL(ctx, url)
	if err != nil {
		return "", err
	}
	return r.CreateRecipe(ctx, *header, *version)
}

// persistVersion is the single write primitive all three save variants
// funnel through. It resolves pending catalog refs, then hands one header
// row, one version row, and the full line/step sets to the store's
// transactional save.
func (r *Repository) persistVersion(ctx context.Context, header domain.RecipeHeader, version domain.RecipeVersion) error {
	if err := r.resolvePending(ctx, &version); err != nil {
		return err
	}

	headerRow := store.HeaderRow{
		ID:                  header.ID,
		Title:               header.Title,
		CategoryID:          header.Category.ID,
		ImageURL:            header.ImageURL,
		DefaultPrepTimeMins: header.DefaultPrepTimeMins,
		IsFavorite:          header.IsFavorite,
	}
	versionRow := store.VersionRow{
		ID:                   version.ID,
		HeaderID:             version.HeaderID,
		Name:                 version.Name,
		Commentary:           version.Commentary,
		OverridePrepTimeMins: version.OverridePrepTimeMins,
		CreatedAt:            version.CreatedAt,
	}

	lines := make([]store.IngredientRow, len(version.Ingredients))
	for i, ing := range version.Ingredients {
		lines[i] = store.IngredientRow{
			ID:          ing.ID,
			VersionID:   version.ID,
			DisplayName: ing.DisplayName,
			StandardID:  ing.Standard.ID,
			Quantity:    ing.Quantity,
			UnitID:      ing.Unit.ID,
			ItemOrder:   i,
		}
	}
	steps := make([]store.StepRow, len(version.Directions))
	for i, step := range version.Directions {
		row := store.StepRow{
			ID:          step.ID,
			VersionID:   version.ID,
			Description: step.Description,
			ItemOrder:   i,
		}
		if step.Timer != nil {
			row.TimerSeconds = step.Timer.DurationSeconds
		}
		steps[i] = row
	}

	return classify(r.store.SaveFullVersion(ctx, headerRow, versionRow, lines, steps))
}

// resolvePending assigns catalog identity to ingredient lines whose
// standard ref is still pending (the user typed a name with no catalog
// match): a fresh entry is upserted into the shared catalog and the line is
// rewritten to reference it, before the version write proceeds.
func (r *Repository) resolvePending(ctx context.Context, version *domain.RecipeVersion) error {
	for i := range version.Ingredients {
		std := version.Ingredients[i].Standard
		if !std.IsPending() {
			continue
		}
		std.ID = uuid.NewString()
		if std.Name == "" {
			std.Name = version.Ingredients[i].DisplayName
		}
		if err := r.catalog.InsertStandardIngredient(ctx, std); err != nil {
			return classify(err)
		}
		version.Ingredients[i].Standard = std
		r.log.Debug("minted catalog entry %q (%s)", std.Name, std.ID)
	}
	return nil
}

// MarkFavorite flags a header as favorite.
func (r *Repository) MarkFavorite(ctx context.Context, headerID string) error {
	return classify(r.store.SetFavorite(ctx, headerID, true))
}

// RemoveFavorite clears the favorite flag on a header.
func (r *Repository) RemoveFavorite(ctx context.Context, headerID string) error {
	return classify(r.store.SetFavorite(ctx, headerID, false))
}

// DeleteVersion removes a version and its lines and steps. Removing the
// last remaining version of a header deletes the whole header: a header
// never exists without at least one version. The count check and the
// delete run in one store transaction, so concurrent deletes cannot
// orphan a header.
func (r *Repository) DeleteVersion(ctx context.Context, versionID string) error {
	cascaded, err := r.store.DeleteVersionCascade(ctx, versionID)
	if err != nil {
		return classify(err)
	}
	if cascaded {
		r.log.Info("deleted last version %s, header removed with it", versionID)
	}
	return nil
}

// DeleteHeader removes a header and cascades to all its versions.
func (r *Repository) DeleteHeader(ctx context.Context, headerID string) error {
	return classify(r.store.DeleteHeader(ctx, headerID))
}

// SearchStandardIngredients is a one-shot catalog search.
func (r *Repository) SearchStandardIngredients(ctx context.Context, query string) ([]domain.StandardIngredient, error) {
	out, err := r.catalog.SearchStandardIngredients(ctx, query)
	return out, classify(err)
}

// AllMeasureUnits returns every measure unit in the catalog.
func (r *Repository) AllMeasureUnits(ctx context.Context) ([]domain.MeasureUnit, error) {
	out, err := r.catalog.AllUnits(ctx)
	return out, classify(err)
}

// validate rejects a save before any write is attempted. Validation errors
// carry domain.ErrValidation and keep the user's in-progress edits intact.
func validate(header domain.RecipeHeader, version domain.RecipeVersion) error {
	if strings.TrimSpace(header.Title) == "" {
		return fmt.Errorf("%w: recipe title must not be blank", domain.ErrValidation)
	}
	if strings.TrimSpace(version.Name) == "" {
		return fmt.Errorf("%w: version name must not be blank", domain.ErrValidation)
	}
	for _, ing := range version.Ingredients {
		if ing.Quantity < 0 {
			return fmt.Errorf("%w: ingredient %q has negative quantity", domain.ErrValidation, ing.DisplayName)
		}
		if ing.Unit.ID == "" {
			return fmt.Errorf("%w: ingredient %q has no measure unit", domain.ErrValidation, ing.DisplayName)
		}
	}
	for _, step := range version.Directions {
		if step.Timer != nil && step.Timer.DurationSeconds <= 0 {
			return fmt.Errorf("%w: step timer duration must be positive", domain.ErrValidation)
		}
	}
	return nil
}

// classify maps raw storage errors to the typed outcome taxonomy at the
// facade boundary. Sentinels pass through; connection-level failures become
// ErrStorageUnavailable; anything else unclassified is ErrUnknown.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAlreadyExists):
		return err
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnknown, err)
	}
}
