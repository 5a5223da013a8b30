// Package catalog provides the measurement catalog: lookup of measure units
// and standard ingredients shared by all recipes.
package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
	"github.com/kbenzarti/forkbook/internal/store"
)

// Compile-time interface check.
var _ domain.Catalog = (*SQLCatalog)(nil)

// SQLCatalog reads the catalog tables of the recipe store. Lookups take id
// sets and return maps, so callers assembling many ingredient lines issue
// one query per catalog type.
type SQLCatalog struct {
	db  *sql.DB
	log *logger.Logger
}

// New creates a catalog over the same database the store owns.
func New(st *store.Store, log *logger.Logger) *SQLCatalog {
	return &SQLCatalog{db: st.DB(), log: log}
}

// LookupUnits returns the measure units for the given ids, keyed by id.
// Missing ids are simply absent from the map.
func (c *SQLCatalog) LookupUnits(ctx context.Context, ids []string) (map[string]domain.MeasureUnit, error) {
	out := make(map[string]domain.MeasureUnit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, abbreviation, measurement_type, conversion_factor, is_system_unit
		FROM measure_unit WHERE id IN (`+placeholders(len(ids))+`)`, asArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u     domain.MeasureUnit
			mtype string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Abbreviation, &mtype, &u.ConversionFactor, &u.IsSystemUnit); err != nil {
			return nil, err
		}
		u.Type = domain.MeasurementType(mtype)
		out[u.ID] = u
	}
	return out, rows.Err()
}

// LookupStandardIngredients returns the standard ingredients for the given
// ids, keyed by id. Missing ids are simply absent from the map.
func (c *SQLCatalog) LookupStandardIngredients(ctx context.Context, ids []string) (map[string]domain.StandardIngredient, error) {
	out := make(map[string]domain.StandardIngredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, density FROM standard_ingredient
		WHERE id IN (`+placeholders(len(ids))+`)`, asArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			si      domain.StandardIngredient
			density sql.NullFloat64
		)
		if err := rows.Scan(&si.ID, &si.Name, &density); err != nil {
			return nil, err
		}
		si.Density = density.Float64
		out[si.ID] = si
	}
	return out, rows.Err()
}

// SearchStandardIngredients returns catalog entries whose name contains the
// query, case-insensitive.
func (c *SQLCatalog) SearchStandardIngredients(ctx context.Context, query string) ([]domain.StandardIngredient, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, density FROM standard_ingredient
		WHERE name LIKE '%' || ? || '%' ORDER BY name ASC`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StandardIngredient
	for rows.Next() {
		var (
			si      domain.StandardIngredient
			density sql.NullFloat64
		)
		if err := rows.Scan(&si.ID, &si.Name, &density); err != nil {
			return nil, err
		}
		si.Density = density.Float64
		out = append(out, si)
	}
	return out, rows.Err()
}

// InsertStandardIngredient upserts a catalog entry. The catalog is shared:
// inserting here grows it for every recipe, permanently.
func (c *SQLCatalog) InsertStandardIngredient(ctx context.Context, entry domain.StandardIngredient) error {
	var density any
	if entry.Density > 0 {
		density = entry.Density
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO standard_ingredient (id, name, density) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, density = excluded.density`,
		entry.ID, entry.Name, density)
	if err != nil {
		return err
	}
	c.log.Debug("catalog entry upserted: %s (%s)", entry.Name, entry.ID)
	return nil
}

// AllUnits returns every measure unit, system units first, then by name.
func (c *SQLCatalog) AllUnits(ctx context.Context) ([]domain.MeasureUnit, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, abbreviation, measurement_type, conversion_factor, is_system_unit
		FROM measure_unit ORDER BY is_system_unit DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MeasureUnit
	for rows.Next() {
		var (
			u     domain.MeasureUnit
			mtype string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Abbreviation, &mtype, &u.ConversionFactor, &u.IsSystemUnit); err != nil {
			return nil, err
		}
		u.Type = domain.MeasurementType(mtype)
		out = append(out, u)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func asArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
