package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/kbenzarti/forkbook/internal/catalog"
	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
	"github.com/kbenzarti/forkbook/internal/store"
)

// countingCatalog wraps the real catalog and counts batch lookup calls.
type countingCatalog struct {
	domain.Catalog

	mu          sync.Mutex
	unitLookups int
	stdLookups  int
}

func (c *countingCatalog) LookupUnits(ctx context.Context, ids []string) (map[string]domain.MeasureUnit, error) {
	c.mu.Lock()
	c.unitLookups++
	c.mu.Unlock()
	return c.Catalog.LookupUnits(ctx, ids)
}

func (c *countingCatalog) LookupStandardIngredients(ctx context.Context, ids []string) (map[string]domain.StandardIngredient, error) {
	c.mu.Lock()
	c.stdLookups++
	c.mu.Unlock()
	return c.Catalog.LookupStandardIngredients(ctx, ids)
}

func (c *countingCatalog) counts() (units, stds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unitLookups, c.stdLookups
}

func (c *countingCatalog) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unitLookups, c.stdLookups = 0, 0
}

func newTestRepo(t *testing.T) (*Repository, *countingCatalog) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	st, err := store.Open(":memory:", log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cat := &countingCatalog{Catalog: catalog.New(st, log)}
	return New(st, cat, log), cat
}

func gram(t *testing.T, r *Repository) domain.MeasureUnit {
	t.Helper()
	units, err := r.AllMeasureUnits(context.Background())
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	for _, u := range units {
		if u.ID == "unit_g" {
			return u
		}
	}
	t.Fatal("gram unit not seeded")
	return domain.MeasureUnit{}
}

func testInput(t *testing.T, r *Repository) (domain.RecipeHeader, domain.RecipeVersion) {
	t.Helper()
	g := gram(t, r)
	header := domain.RecipeHeader{
		Title:               "Chicken Curry",
		Category:            domain.Category{ID: "cat_mains"},
		DefaultPrepTimeMins: 45,
	}
	version := domain.RecipeVersion{
		Name:       "Original",
		Commentary: "First attempt",
		CreatedAt:  1000,
		Ingredients: []domain.Ingredient{
			{DisplayName: "Chicken Breast", Standard: domain.StandardIngredient{ID: "std_chicken"}, Quantity: 500, Unit: g},
			{DisplayName: "Curry Powder", Standard: domain.StandardIngredient{ID: "std_curry_powder"}, Quantity: 10, Unit: g},
		},
		Directions: []domain.InstructionStep{
			{Description: "Fry the chicken."},
			{Description: "Simmer.", Timer: &domain.TimerInfo{DurationSeconds: 1200}},
		},
	}
	return header, version
}

func TestCreateRecipeMintsFreshIDs(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	// Ids passed by the caller must be ignored, not reused.
	header.ID = "stale-header"
	version.ID = "stale-version"
	version.Ingredients[0].ID = "stale-line"

	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if headerID == "" || headerID == "stale-header" {
		t.Fatalf("expected a fresh header id, got %q", headerID)
	}

	details, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	v := details.SelectedVersion
	if v == nil {
		t.Fatal("expected a selected version")
	}
	if v.ID == "stale-version" || v.ID == "" {
		t.Fatalf("expected a fresh version id, got %q", v.ID)
	}
	if v.HeaderID != headerID {
		t.Fatalf("version linked to %q, want %q", v.HeaderID, headerID)
	}
	if len(v.Ingredients) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(v.Ingredients))
	}
	if v.Ingredients[0].ID == "stale-line" || v.Ingredients[0].ID == "" {
		t.Fatalf("expected a fresh line id, got %q", v.Ingredients[0].ID)
	}
	if v.Ingredients[0].DisplayName != "Chicken Breast" {
		t.Fatalf("line order lost: got %q first", v.Ingredients[0].DisplayName)
	}
	if v.Directions[1].Timer == nil || v.Directions[1].Timer.DurationSeconds != 1200 {
		t.Fatalf("step timer lost: %+v", v.Directions[1].Timer)
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	g := gram(t, r)

	cases := []struct {
		name   string
		mutate func(*domain.RecipeHeader, *domain.RecipeVersion)
	}{
		{"blank title", func(h *domain.RecipeHeader, v *domain.RecipeVersion) {
			h.Title = "   "
		}},
		{"blank version name", func(h *domain.RecipeHeader, v *domain.RecipeVersion) {
			v.Name = ""
		}},
		{"negative quantity", func(h *domain.RecipeHeader, v *domain.RecipeVersion) {
			v.Ingredients = []domain.Ingredient{
				{DisplayName: "Salt", Standard: domain.StandardIngredient{ID: "std_flour"}, Quantity: -1, Unit: g},
			}
		}},
		{"missing unit", func(h *domain.RecipeHeader, v *domain.RecipeVersion) {
			v.Ingredients = []domain.Ingredient{
				{DisplayName: "Salt", Standard: domain.StandardIngredient{ID: "std_flour"}, Quantity: 1},
			}
		}},
		{"zero timer", func(h *domain.RecipeHeader, v *domain.RecipeVersion) {
			v.Directions = []domain.InstructionStep{
				{Description: "Wait.", Timer: &domain.TimerInfo{DurationSeconds: 0}},
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header, version := testInput(t, r)
			tc.mutate(&header, &version)
			if _, err := r.CreateRecipe(ctx, header, version); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	// Nothing must have been written by the rejected saves.
	headers, err := r.GetHeaders(ctx)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if len(headers) != 0 {
		t.Fatalf("expected no recipes after failed validation, got %d", len(headers))
	}
}

func TestSaveChangesOverwritesInPlace(t *testing.T) {
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
	saved := *details.SelectedVersion

	// Drop the first line and rename the version.
	edited := saved
	edited.Name = "Less Spicy"
	edited.Ingredients = []domain.Ingredient{saved.Ingredients[1]}
	if err := r.SaveChanges(ctx, details.Header, edited); err != nil {
		t.Fatalf("save changes: %v", err)
	}

	after, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details after: %v", err)
	}
	if len(after.AllVersions) != 1 {
		t.Fatalf("overwrite must not create a version, got %d", len(after.AllVersions))
	}
	got := after.SelectedVersion
	if got.ID != saved.ID {
		t.Fatalf("version id changed on overwrite: %q -> %q", saved.ID, got.ID)
	}
	if got.Name != "Less Spicy" {
		t.Fatalf("rename not persisted, got %q", got.Name)
	}
	if len(got.Ingredients) != 1 || got.Ingredients[0].DisplayName != "Curry Powder" {
		t.Fatalf("line removal not persisted: %+v", got.Ingredients)
	}
}

func TestSaveChangesIdempotent(t *testing.T) {
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
	saved := *details.SelectedVersion

	// Saving identical content twice must leave the store indistinguishable
	// from saving once.
	if err := r.SaveChanges(ctx, details.Header, saved); err != nil {
		t.Fatalf("first save: %v", err)
	}
	once, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("read after first save: %v", err)
	}
	if err := r.SaveChanges(ctx, details.Header, saved); err != nil {
		t.Fatalf("second save: %v", err)
	}
	twice, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("read after second save: %v", err)
	}

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("repeated save changed state:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if len(twice) != 1 {
		t.Fatalf("repeated save must not create versions, got %d", len(twice))
	}
}

func TestSaveChangesRequiresIDs(t *testing.T) {
	r, _ := newTestRepo(t)
	header, version := testInput(t, r)

	if err := r.SaveChanges(context.Background(), header, version); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without ids, got %v", err)
	}
}

func TestSaveAsNewVersionBranchIsolation(t *testing.T) {
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
	original := *details.SelectedVersion

	// Branch a vegan variant: chicken swapped for chickpeas.
	branch := original
	branch.Name = "Vegan"
	branch.CreatedAt = original.CreatedAt + 1000
	branch.Ingredients = append([]domain.Ingredient(nil), original.Ingredients...)
	branch.Ingredients[0].DisplayName = "Chickpeas"
	branch.Ingredients[0].Standard = domain.StandardIngredient{ID: "std_chickpeas"}
	if err := r.SaveAsNewVersion(ctx, details.Header, branch); err != nil {
		t.Fatalf("branch: %v", err)
	}

	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions after branch, got %d", len(versions))
	}
	// Most recent first.
	if versions[0].Name != "Vegan" || versions[1].Name != "Original" {
		t.Fatalf("unexpected version order: %q, %q", versions[0].Name, versions[1].Name)
	}
	if versions[0].ID == original.ID {
		t.Fatal("branch must get a fresh version id")
	}
	if versions[0].HeaderID != headerID || versions[1].HeaderID != headerID {
		t.Fatal("both versions must share the header")
	}
	if versions[0].Ingredients[0].ID == original.Ingredients[0].ID {
		t.Fatal("branched lines must get fresh ids")
	}
	// The source version is untouched.
	if versions[1].Ingredients[0].DisplayName != "Chicken Breast" {
		t.Fatalf("original version mutated by branch: %+v", versions[1].Ingredients[0])
	}
	if versions[0].Ingredients[0].DisplayName != "Chickpeas" {
		t.Fatalf("branch edit lost: %+v", versions[0].Ingredients[0])
	}
}

func TestSaveAsNewVersionRequiresHeaderID(t *testing.T) {
	r, _ := newTestRepo(t)
	header, version := testInput(t, r)

	if err := r.SaveAsNewVersion(context.Background(), header, version); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without header id, got %v", err)
	}
}

func TestDeleteLastVersionRemovesHeader(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}

	if err := r.DeleteVersion(ctx, versions[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetHeaderByID(ctx, headerID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected header gone with its last version, got %v", err)
	}
}

func TestDeleteVersionKeepsHeaderWhenOthersRemain(t *testing.T) {
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
	branch := *details.SelectedVersion
	branch.Name = "Vegan"
	branch.CreatedAt = details.SelectedVersion.CreatedAt + 1000
	if err := r.SaveAsNewVersion(ctx, details.Header, branch); err != nil {
		t.Fatalf("branch: %v", err)
	}

	if err := r.DeleteVersion(ctx, details.SelectedVersion.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := r.GetHeaderByID(ctx, headerID); err != nil {
		t.Fatalf("header must survive while versions remain: %v", err)
	}
	versions, err := r.GetVersionsForRecipe(ctx, headerID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Name != "Vegan" {
		t.Fatalf("expected only the Vegan version left, got %+v", versions)
	}
}

func TestDeleteVersionNotFound(t *testing.T) {
	r, _ := newTestRepo(t)
	if err := r.DeleteVersion(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPendingStandardResolvedAtSave(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	g := gram(t, r)

	header, version := testInput(t, r)
	version.Ingredients = append(version.Ingredients, domain.Ingredient{
		DisplayName: "Dragonfruit",
		Standard:    domain.NewStandard("Dragonfruit"),
		Quantity:    2,
		Unit:        g,
	})

	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	details, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	lines := details.SelectedVersion.Ingredients
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines including the pending one, got %d", len(lines))
	}
	resolved := lines[2]
	if resolved.Standard.IsPending() {
		t.Fatal("pending ref must be resolved at save time")
	}
	if resolved.Standard.Name != "Dragonfruit" {
		t.Fatalf("resolved entry has wrong name %q", resolved.Standard.Name)
	}

	// The minted entry is now part of the shared catalog.
	matches, err := r.SearchStandardIngredients(ctx, "dragon")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != resolved.Standard.ID {
		t.Fatalf("minted entry not searchable: %+v", matches)
	}
}

// stubParser returns a canned parse result or error.
type stubParser struct {
	header  domain.RecipeHeader
	version domain.RecipeVersion
	err     error

	gotURL string
}

func (p *stubParser) ParseFromURL(ctx context.Context, url string) (*domain.RecipeHeader, *domain.RecipeVersion, error) {
	p.gotURL = url
	if p.err != nil {
		return nil, nil, p.err
	}
	return &p.header, &p.version, nil
}

func TestImportParsed(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	version.Ingredients[0].Standard = domain.NewStandard(version.Ingredients[0].DisplayName)
	parser := &stubParser{header: header, version: version}

	headerID, err := r.ImportParsed(ctx, parser, "https://example.com/curry")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if parser.gotURL != "https://example.com/curry" {
		t.Fatalf("wrong url forwarded: %q", parser.gotURL)
	}

	// The import went through the create path: fresh ids, pending refs
	// resolved, recipe readable like any other.
	details, err := r.GetRecipeDetails(ctx, headerID, "")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Header.Title != "Chicken Curry" {
		t.Fatalf("imported title lost: %q", details.Header.Title)
	}
	v := details.SelectedVersion
	if v == nil || len(v.Ingredients) != 2 {
		t.Fatalf("imported version incomplete: %+v", v)
	}
	if v.Ingredients[0].Standard.IsPending() {
		t.Fatal("pending catalog ref must be resolved on import")
	}
}

func TestImportParsedServiceFailure(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	parser := &stubParser{err: fmt.Errorf("%w: parser down", domain.ErrServiceUnavailable)}
	if _, err := r.ImportParsed(ctx, parser, "https://example.com/x"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable passthrough, got %v", err)
	}

	// A failed import writes nothing.
	headers, err := r.GetHeaders(ctx)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if len(headers) != 0 {
		t.Fatalf("expected no recipes after failed import, got %d", len(headers))
	}
}

func TestFavoriteRoundTrip(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.MarkFavorite(ctx, headerID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	h, err := r.GetHeaderByID(ctx, headerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !h.IsFavorite {
		t.Fatal("expected favorite after MarkFavorite")
	}

	if err := r.RemoveFavorite(ctx, headerID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	h, err = r.GetHeaderByID(ctx, headerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if h.IsFavorite {
		t.Fatal("expected not favorite after RemoveFavorite")
	}

	if err := r.MarkFavorite(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown header, got %v", err)
	}
}
