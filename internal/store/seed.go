package store

import "context"

// Bootstrap data inserted once, when the database is created with an empty
// catalog. Unit conversion factors are relative to the system base of each
// measurement type (grams for weight, milliliters for volume).

type seedUnit struct {
	id, name, abbrev string
	mtype            string
	factor           float64
}

var seedCategories = []struct{ id, name string }{
	{"cat_desserts", "Desserts"},
	{"cat_mains", "Main Courses"},
	{"cat_soups", "Soups"},
	{"cat_salads", "Salads"},
}

var seedUnits = []seedUnit{
	{"unit_g", "Gram", "g", "WEIGHT", 1.0},
	{"unit_kg", "Kilogram", "kg", "WEIGHT", 1000.0},
	{"unit_ml", "Milliliter", "ml", "VOLUME", 1.0},
	{"unit_l", "Liter", "l", "VOLUME", 1000.0},
	{"unit_pcs", "Piece", "pcs", "PIECE", 1.0},
	{"unit_tsp", "Teaspoon", "tsp", "VOLUME", 4.92},
	{"unit_tbsp", "Tablespoon", "tbsp", "VOLUME", 14.79},
}

var seedStandardIngredients = []struct {
	id, name string
	density  float64 // g/ml, 0 = unknown
}{
	{"std_flour", "All-Purpose Flour", 0.53},
	{"std_chicken", "Chicken Breast", 0},
	{"std_sugar", "White Sugar", 0.85},
	{"std_butter", "Butter", 0.91},
	{"std_apple", "Apple", 0},
	{"std_chickpeas", "Chickpeas", 0},
	{"std_coconut_milk", "Coconut Milk", 1.02},
	{"std_curry_powder", "Curry Powder", 0.5},
}

// seedIfEmpty seeds the catalog bootstrap set when the category table is
// empty, and optionally two sample recipes.
func (s *Store) seedIfEmpty(ctx context.Context) error {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM category`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range seedCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category (id, name) VALUES (?, ?)`, c.id, c.name); err != nil {
			return err
		}
	}
	for _, u := range seedUnits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO measure_unit (id, name, abbreviation, measurement_type, conversion_factor, is_system_unit)
			VALUES (?, ?, ?, ?, ?, 1)`,
			u.id, u.name, u.abbrev, u.mtype, u.factor); err != nil {
			return err
		}
	}
	for _, si := range seedStandardIngredients {
		var density any
		if si.density > 0 {
			density = si.density
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO standard_ingredient (id, name, density) VALUES (?, ?, ?)`,
			si.id, si.name, density); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("seeded catalog bootstrap data")

	if s.seedSamples {
		return s.seedSampleRecipes(ctx)
	}
	return nil
}

// seedSampleRecipes inserts two example recipes so a fresh database is not
// an empty screen.
func (s *Store) seedSampleRecipes(ctx context.Context) error {
	pieHeader := HeaderRow{
		ID: "header_pie", Title: "Classic Apple Pie", CategoryID: "cat_desserts",
		DefaultPrepTimeMins: 90, IsFavorite: true,
	}
	pieVersion := VersionRow{
		ID: "version_pie_1", HeaderID: "header_pie", Name: "Original",
		Commentary: "Grandma's recipe", OverridePrepTimeMins: 90, CreatedAt: 1749585531936,
	}
	pieLines := []IngredientRow{
		{ID: "ing_pie_1", VersionID: "version_pie_1", DisplayName: "All-purpose Flour", StandardID: "std_flour", Quantity: 300, UnitID: "unit_g", ItemOrder: 1},
		{ID: "ing_pie_2", VersionID: "version_pie_1", DisplayName: "Cold Butter", StandardID: "std_butter", Quantity: 150, UnitID: "unit_g", ItemOrder: 2},
		{ID: "ing_pie_3", VersionID: "version_pie_1", DisplayName: "Apples", StandardID: "std_apple", Quantity: 6, UnitID: "unit_pcs", ItemOrder: 3},
	}
	pieSteps := []StepRow{
		{ID: "step_pie_1", VersionID: "version_pie_1", Description: "Mix flour and butter.", ItemOrder: 1},
		{ID: "step_pie_2", VersionID: "version_pie_1", Description: "Bake for 45 minutes.", TimerSeconds: 2700, ItemOrder: 2},
	}
	if err := s.SaveFullVersion(ctx, pieHeader, pieVersion, pieLines, pieSteps); err != nil {
		return err
	}

	curryHeader := HeaderRow{
		ID: "header_curry", Title: "Spicy Chicken Curry", CategoryID: "cat_mains",
		DefaultPrepTimeMins: 45,
	}
	curryVersion := VersionRow{
		ID: "version_curry_1", HeaderID: "header_curry", Name: "Original",
		Commentary: "Quick and easy!", OverridePrepTimeMins: 40, CreatedAt: 1749525531936,
	}
	curryLines := []IngredientRow{
		{ID: "ing_curry_1", VersionID: "version_curry_1", DisplayName: "Chicken Breast", StandardID: "std_chicken", Quantity: 500, UnitID: "unit_g", ItemOrder: 1},
		{ID: "ing_curry_2", VersionID: "version_curry_1", DisplayName: "Coconut Milk", StandardID: "std_coconut_milk", Quantity: 400, UnitID: "unit_ml", ItemOrder: 2},
		{ID: "ing_curry_3", VersionID: "version_curry_1", DisplayName: "Curry Powder", StandardID: "std_curry_powder", Quantity: 2, UnitID: "unit_tsp", ItemOrder: 3},
	}
	currySteps := []StepRow{
		{ID: "step_curry_1", VersionID: "version_curry_1", Description: "Fry chicken until golden.", ItemOrder: 1},
		{ID: "step_curry_2", VersionID: "version_curry_1", Description: "Add coconut milk and simmer for 20 minutes.", TimerSeconds: 1200, ItemOrder: 2},
	}
	if err := s.SaveFullVersion(ctx, curryHeader, curryVersion, curryLines, currySteps); err != nil {
		return err
	}

	s.log.Debug("seeded sample recipes")
	return nil
}
