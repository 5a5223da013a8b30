package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/kbenzarti/forkbook/internal/domain"
)

func TestAssembleUsesTwoBatchLookups(t *testing.T) {
	r, cat := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	details, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	branch := *details.SelectedVersion
	branch.Name = "Vegan"
	branch.CreatedAt = details.SelectedVersion.CreatedAt + 1000
	if err := r.SaveAsNewVersion(ctx, details.Header, branch); err != nil {
		t.Fatalf("branch: %v", err)
	}

	// Two versions, four ingredient lines total: still exactly one lookup
	// per catalog type, never one per line or per version.
	cat.reset()
	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	units, stds := cat.counts()
	if units != 1 || stds != 1 {
		t.Fatalf("expected 1 unit + 1 standard lookup, got %d/%d", units, stds)
	}
}

func TestAssembleSkipsLookupsForEmptyResult(t *testing.T) {
	r, cat := newTestRepo(t)

	cat.reset()
	versions, err := r.GetVersionsForRecipe(context.Background(), "no-such-header")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected no versions, got %d", len(versions))
	}
	units, stds := cat.counts()
	if units != 0 || stds != 0 {
		t.Fatalf("expected no catalog lookups for an empty result, got %d/%d", units, stds)
	}
}

func TestAssembleDropsLinesWithMissingRefs(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	g := gram(t, r)

	header, version := testInput(t, r)
	// A line whose standard ref does not exist in the catalog. The store
	// accepts it; the read path must drop it rather than fail.
	version.Ingredients = append(version.Ingredients, domain.Ingredient{
		DisplayName: "Ghost Pepper",
		Standard:    domain.StandardIngredient{ID: "std_ghost"},
		Quantity:    1,
		Unit:        g,
	})

	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	lines := versions[0].Ingredients
	if len(lines) != 2 {
		t.Fatalf("expected the dangling line dropped, got %d lines", len(lines))
	}
	for _, line := range lines {
		if line.DisplayName == "Ghost Pepper" {
			t.Fatal("line with missing catalog ref must not surface")
		}
	}
	// The surviving lines keep their saved order and resolved refs.
	if lines[0].DisplayName != "Chicken Breast" || lines[1].DisplayName != "Curry Powder" {
		t.Fatalf("order lost after dropping: %q, %q", lines[0].DisplayName, lines[1].DisplayName)
	}
	if lines[0].Standard.Name != "Chicken Breast" || lines[0].Unit.ID != "unit_g" {
		t.Fatalf("catalog join incomplete: %+v", lines[0])
	}
}

func TestGetRecipeDetailsSelection(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	details, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	originalID := details.SelectedVersion.ID

	branch := *details.SelectedVersion
	branch.Name = "Vegan"
	branch.CreatedAt = details.SelectedVersion.CreatedAt + 1000
	if err := r.SaveAsNewVersion(ctx, details.Header, branch); err != nil {
		t.Fatalf("branch: %v", err)
	}

	// Explicit selection wins.
	details, err = r.GetRecipeDetails(ctx, headerID, originalID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.SelectedVersion.ID != originalID {
		t.Fatalf("expected explicit selection %q, got %q", originalID, details.SelectedVersion.ID)
	}

	// Unknown or empty selection falls back to the most recent.
	details, err = r.GetRecipeDetails(ctx, headerID, "no-such-version")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.SelectedVersion.Name != "Vegan" {
		t.Fatalf("expected fallback to most recent, got %q", details.SelectedVersion.Name)
	}
	if len(details.AllVersions) != 2 {
		t.Fatalf("expected both versions listed, got %d", len(details.AllVersions))
	}
}

func TestGetRecipeDetailsNotFound(t *testing.T) {
	r, _ := newTestRepo(t)

	if _, err := r.GetRecipeDetails(context.Background(), "nope", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing header, got %v", err)
	}
}

func TestHeadersFallBackToUncategorized(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	header.Category = domain.Category{} // no category chosen
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	h, err := r.GetHeaderByID(ctx, headerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if h.Category.Name != domain.Uncategorized.Name {
		t.Fatalf("expected uncategorized fallback, got %+v", h.Category)
	}
}

func TestSearchRecipes(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	if _, err := r.CreateRecipe(ctx, header, version); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.SearchRecipes(ctx, "curry")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Chicken Curry" {
		t.Fatalf("expected the curry recipe, got %+v", got)
	}

	got, err = r.SearchRecipes(ctx, "lasagna")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}
