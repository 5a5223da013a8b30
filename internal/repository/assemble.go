package repository

import (
	"context"
	"sort"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/store"
)

// Read-path assembly: flat rows in, rich domain objects out. The ingredient
// lines of all versions are resolved against the catalog with exactly two
// batch lookups (one per catalog type), never one query per line.

// GetHeaders returns all recipe headers with their categories, ordered by
// title.
func (r *Repository) GetHeaders(ctx context.Context) ([]domain.RecipeHeader, error) {
	rows, err := r.store.HeadersWithCategory(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return assembleHeaders(rows), nil
}

// SearchRecipes returns headers whose title matches the query.
func (r *Repository) SearchRecipes(ctx context.Context, query string) ([]domain.RecipeHeader, error) {
	rows, err := r.store.SearchHeadersWithCategory(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	return assembleHeaders(rows), nil
}

// GetHeaderByID returns one header, or domain.ErrNotFound. Not-found is an
// expected outcome, not a failure.
func (r *Repository) GetHeaderByID(ctx context.Context, id string) (*domain.RecipeHeader, error) {
	row, err := r.store.HeaderWithCategoryByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	h := assembleHeader(*row)
	return &h, nil
}

// GetVersionsForRecipe returns all versions of a header, most recent first,
// fully assembled.
func (r *Repository) GetVersionsForRecipe(ctx context.Context, headerID string) ([]domain.RecipeVersion, error) {
	rows, err := r.store.VersionsWithDetails(ctx, headerID)
	if err != nil {
		return nil, classify(err)
	}
	return r.assembleVersions(ctx, rows)
}

// GetRecipeDetails combines the header and all its versions in one call.
// The selected version is the one matching versionID, falling back to the
// most recent. Returns domain.ErrNotFound when the header is absent.
func (r *Repository) GetRecipeDetails(ctx context.Context, headerID, versionID string) (*domain.RecipeDetails, error) {
	header, err := r.GetHeaderByID(ctx, headerID)
	if err != nil {
		return nil, err
	}
	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		return nil, err
	}

	details := &domain.RecipeDetails{Header: *header, AllVersions: versions}
	for i := range versions {
		if versions[i].ID == versionID {
			details.SelectedVersion = &versions[i]
			break
		}
	}
	if details.SelectedVersion == nil && len(versions) > 0 {
		details.SelectedVersion = &versions[0]
	}
	return details, nil
}

// assembleVersions joins version rows against the catalog. Distinct
// standard-ingredient and unit ids are collected across all versions in one
// pass, fetched with one batch lookup each, then joined in memory. A line
// whose catalog refs have gone missing is silently dropped rather than
// failing the whole version; the UI never sees a line with holes in it.
func (r *Repository) assembleVersions(ctx context.Context, rows []store.VersionWithDetails) ([]domain.RecipeVersion, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	stdSet := make(map[string]struct{})
	unitSet := make(map[string]struct{})
	for _, vr := range rows {
		for _, line := range vr.Ingredients {
			stdSet[line.StandardID] = struct{}{}
			unitSet[line.UnitID] = struct{}{}
		}
	}

	standards, err := r.catalog.LookupStandardIngredients(ctx, keys(stdSet))
	if err != nil {
		return nil, classify(err)
	}
	units, err := r.catalog.LookupUnits(ctx, keys(unitSet))
	if err != nil {
		return nil, classify(err)
	}

	out := make([]domain.RecipeVersion, 0, len(rows))
	for _, vr := range rows {
		version := domain.RecipeVersion{
			ID:                   vr.Version.ID,
			HeaderID:             vr.Version.HeaderID,
			Name:                 vr.Version.Name,
			Commentary:           vr.Version.Commentary,
			OverridePrepTimeMins: vr.Version.OverridePrepTimeMins,
			CreatedAt:            vr.Version.CreatedAt,
		}

		lines := append([]store.IngredientRow(nil), vr.Ingredients...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ItemOrder < lines[j].ItemOrder })
		for _, line := range lines {
			std, okStd := standards[line.StandardID]
			unit, okUnit := units[line.UnitID]
			if !okStd || !okUnit {
				r.log.Debug("dropping line %s: missing catalog refs (std=%s, unit=%s)",
					line.ID, line.StandardID, line.UnitID)
				continue
			}
			version.Ingredients = append(version.Ingredients, domain.Ingredient{
				ID:          line.ID,
				DisplayName: line.DisplayName,
				Standard:    std,
				Quantity:    line.Quantity,
				Unit:        unit,
			})
		}

		steps := append([]store.StepRow(nil), vr.Steps...)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].ItemOrder < steps[j].ItemOrder })
		for _, row := range steps {
			step := domain.InstructionStep{
				ID:          row.ID,
				Description: row.Description,
			}
			if row.TimerSeconds > 0 {
				step.Timer = &domain.TimerInfo{DurationSeconds: row.TimerSeconds}
			}
			version.Directions = append(version.Directions, step)
		}

		out = append(out, version)
	}
	return out, nil
}

func assembleHeaders(rows []store.HeaderWithCategory) []domain.RecipeHeader {
	out := make([]domain.RecipeHeader, len(rows))
	for i, row := range rows {
		out[i] = assembleHeader(row)
	}
	return out
}

func assembleHeader(row store.HeaderWithCategory) domain.RecipeHeader {
	category := domain.Uncategorized
	if row.Category != nil {
		category = *row.Category
	}
	return domain.RecipeHeader{
		ID:                  row.Header.ID,
		Title:               row.Header.Title,
		Category:            category,
		ImageURL:            row.Header.ImageURL,
		DefaultPrepTimeMins: row.Header.DefaultPrepTimeMins,
		IsFavorite:          row.Header.IsFavorite,
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
