package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kbenzarti/forkbook/internal/domain"
)

// Row types mirror the flat tables. The assembly layer in the repository
// package turns them into rich domain objects.

// HeaderRow is one recipe_header row.
type HeaderRow struct {
	ID                  string
	Title               string
	CategoryID          string // empty means uncategorized
	ImageURL            string
	DefaultPrepTimeMins int
	IsFavorite          bool
}

// VersionRow is one recipe_version row.
type VersionRow struct {
	ID                   string
	HeaderID             string
	Name                 string
	Commentary           string
	OverridePrepTimeMins int
	CreatedAt            int64
}

// IngredientRow is one ingredient line row. ItemOrder is the persisted
// ordinal; it must survive round-trips independent of any sort on id.
type IngredientRow struct {
	ID          string
	VersionID   string
	DisplayName string
	StandardID  string
	Quantity    float64
	UnitID      string
	ItemOrder   int
}

// StepRow is one instruction_step row. TimerSeconds of 0 means untimed.
type StepRow struct {
	ID           string
	VersionID    string
	Description  string
	TimerSeconds int64
	ItemOrder    int
}

// HeaderWithCategory is the header+category join result. Category is nil
// when the header has no category or the category row was deleted.
type HeaderWithCategory struct {
	Header   HeaderRow
	Category *domain.Category
}

// VersionWithDetails is one version with its nested line and step rows,
// both ordered by persisted ordinal.
type VersionWithDetails struct {
	Version     VersionRow
	Ingredients []IngredientRow
	Steps       []StepRow
}

const headerJoin = `
	SELECT h.id, h.title, h.category_id, h.image_url, h.default_prep_time_mins, h.is_favorite,
	       c.id, c.name
	FROM recipe_header h
	LEFT JOIN category c ON c.id = h.category_id`

func scanHeaderRows(rows *sql.Rows) ([]HeaderWithCategory, error) {
	var out []HeaderWithCategory
	for rows.Next() {
		var (
			h                  HeaderRow
			catID              sql.NullString
			joinedID, joinedNm sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Title, &catID, &h.ImageURL, &h.DefaultPrepTimeMins, &h.IsFavorite,
			&joinedID, &joinedNm); err != nil {
			return nil, err
		}
		h.CategoryID = catID.String
		hc := HeaderWithCategory{Header: h}
		if joinedID.Valid {
			hc.Category = &domain.Category{ID: joinedID.String, Name: joinedNm.String}
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}

// HeadersWithCategory returns all headers joined with their category,
// ordered by title.
func (s *Store) HeadersWithCategory(ctx context.Context) ([]HeaderWithCategory, error) {
	rows, err := s.conn.QueryContext(ctx, headerJoin+` ORDER BY h.title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeaderRows(rows)
}

// SearchHeadersWithCategory returns headers whose title contains the query,
// case-insensitive, ordered by title.
func (s *Store) SearchHeadersWithCategory(ctx context.Context, query string) ([]HeaderWithCategory, error) {
	rows, err := s.conn.QueryContext(ctx,
		headerJoin+` WHERE h.title LIKE '%' || ? || '%' ORDER BY h.title ASC`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeaderRows(rows)
}

// FavoriteHeadersWithCategory returns favorite headers, ordered by title.
func (s *Store) FavoriteHeadersWithCategory(ctx context.Context) ([]HeaderWithCategory, error) {
	rows, err := s.conn.QueryContext(ctx, headerJoin+` WHERE h.is_favorite = 1 ORDER BY h.title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeaderRows(rows)
}

// HeaderWithCategoryByID returns one header with its category, or
// domain.ErrNotFound.
func (s *Store) HeaderWithCategoryByID(ctx context.Context, id string) (*HeaderWithCategory, error) {
	rows, err := s.conn.QueryContext(ctx, headerJoin+` WHERE h.id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanHeaderRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return &out[0], nil
}

// VersionsWithDetails returns all versions for a header, most recent first,
// each with its line and step rows. The nested rows for every version are
// fetched in one query per table, not one per version.
func (s *Store) VersionsWithDetails(ctx context.Context, headerID string) ([]VersionWithDetails, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, header_id, name, commentary, override_prep_time_mins, created_at
		FROM recipe_version WHERE header_id = ? ORDER BY created_at DESC`, headerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []VersionWithDetails
	index := make(map[string]int)
	var versionIDs []string
	for rows.Next() {
		var v VersionRow
		if err := rows.Scan(&v.ID, &v.HeaderID, &v.Name, &v.Commentary, &v.OverridePrepTimeMins, &v.CreatedAt); err != nil {
			return nil, err
		}
		index[v.ID] = len(versions)
		versionIDs = append(versionIDs, v.ID)
		versions = append(versions, VersionWithDetails{Version: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}

	args := make([]any, len(versionIDs))
	for i, id := range versionIDs {
		args[i] = id
	}
	in := placeholders(len(versionIDs))

	ingRows, err := s.conn.QueryContext(ctx, `
		SELECT id, version_id, display_name, standard_ingredient_id, quantity, unit_id, item_order
		FROM ingredient WHERE version_id IN (`+in+`) ORDER BY item_order ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer ingRows.Close()
	for ingRows.Next() {
		var r IngredientRow
		if err := ingRows.Scan(&r.ID, &r.VersionID, &r.DisplayName, &r.StandardID, &r.Quantity, &r.UnitID, &r.ItemOrder); err != nil {
			return nil, err
		}
		i := index[r.VersionID]
		versions[i].Ingredients = append(versions[i].Ingredients, r)
	}
	if err := ingRows.Err(); err != nil {
		return nil, err
	}

	stepRows, err := s.conn.QueryContext(ctx, `
		SELECT id, version_id, description, timer_seconds, item_order
		FROM instruction_step WHERE version_id IN (`+in+`) ORDER BY item_order ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var (
			r     StepRow
			timer sql.NullInt64
		)
		if err := stepRows.Scan(&r.ID, &r.VersionID, &r.Description, &timer, &r.ItemOrder); err != nil {
			return nil, err
		}
		r.TimerSeconds = timer.Int64
		i := index[r.VersionID]
		versions[i].Steps = append(versions[i].Steps, r)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	return versions, nil
}

// SaveFullVersion persists one version as a single transaction: upsert the
// header row, upsert the version row, then replace that version's lines and
// steps wholesale. Delete-then-insert (rather than per-line upserts) is what
// makes line deletions and reorderings stick. Any mid-sequence failure rolls
// back, leaving the previous durable state intact.
func (s *Store) SaveFullVersion(ctx context.Context, header HeaderRow, version VersionRow, lines []IngredientRow, steps []StepRow) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recipe_header (id, title, category_id, image_url, default_prep_time_mins, is_favorite)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category_id = excluded.category_id,
			image_url = excluded.image_url,
			default_prep_time_mins = excluded.default_prep_time_mins,
			is_favorite = excluded.is_favorite`,
		header.ID, header.Title, nullable(header.CategoryID), header.ImageURL,
		header.DefaultPrepTimeMins, header.IsFavorite); err != nil {
		return fmt.Errorf("upserting header: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recipe_version (id, header_id, name, commentary, override_prep_time_mins, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			header_id = excluded.header_id,
			name = excluded.name,
			commentary = excluded.commentary,
			override_prep_time_mins = excluded.override_prep_time_mins,
			created_at = excluded.created_at`,
		version.ID, version.HeaderID, version.Name, version.Commentary,
		version.OverridePrepTimeMins, version.CreatedAt); err != nil {
		return fmt.Errorf("upserting version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredient WHERE version_id = ?`, version.ID); err != nil {
		return fmt.Errorf("clearing lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM instruction_step WHERE version_id = ?`, version.ID); err != nil {
		return fmt.Errorf("clearing steps: %w", err)
	}

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ingredient (id, version_id, display_name, standard_ingredient_id, quantity, unit_id, item_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID, line.VersionID, line.DisplayName, line.StandardID,
			line.Quantity, line.UnitID, line.ItemOrder); err != nil {
			return fmt.Errorf("inserting line: %w", err)
		}
	}
	for _, step := range steps {
		var timer any
		if step.TimerSeconds > 0 {
			timer = step.TimerSeconds
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO instruction_step (id, version_id, description, timer_seconds, item_order)
			VALUES (?, ?, ?, ?, ?)`,
			step.ID, step.VersionID, step.Description, timer, step.ItemOrder); err != nil {
			return fmt.Errorf("inserting step: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Debug("saved version %s (header=%s, lines=%d, steps=%d)",
		version.ID, version.HeaderID, len(lines), len(steps))
	s.notifyChanged()
	return nil
}

// deleteVersionRows removes one version and its line and step rows within
// tx. Reports whether the version row existed.
func deleteVersionRows(ctx context.Context, tx *sql.Tx, versionID string) (bool, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredient WHERE version_id = ?`, versionID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM instruction_step WHERE version_id = ?`, versionID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM recipe_version WHERE id = ?`, versionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// deleteHeaderRows removes a header, all its versions, and their line and
// step rows within tx. Reports whether the header row existed.
func deleteHeaderRows(ctx context.Context, tx *sql.Tx, headerID string) (bool, error) {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ingredient WHERE version_id IN
			(SELECT id FROM recipe_version WHERE header_id = ?)`, headerID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM instruction_step WHERE version_id IN
			(SELECT id FROM recipe_version WHERE header_id = ?)`, headerID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_version WHERE header_id = ?`, headerID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM recipe_header WHERE id = ?`, headerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteVersion removes a version and all its line and step rows in one
// transaction. Returns domain.ErrNotFound if the version does not exist.
func (s *Store) DeleteVersion(ctx context.Context, versionID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := deleteVersionRows(ctx, tx, versionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("deleted version %s", versionID)
	s.notifyChanged()
	return nil
}

// DeleteVersionCascade removes a version, deleting the whole header when it
// is the last remaining one. Lookup, count, and delete share one
// transaction, so concurrent deletes can never leave a header with zero
// versions. Returns domain.ErrNotFound if the version does not exist.
func (s *Store) DeleteVersionCascade(ctx context.Context, versionID string) (cascaded bool, err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var headerID string
	err = tx.QueryRowContext(ctx,
		`SELECT header_id FROM recipe_version WHERE id = ?`, versionID).Scan(&headerID)
	if err == sql.ErrNoRows {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, err
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipe_version WHERE header_id = ?`, headerID).Scan(&n); err != nil {
		return false, err
	}

	if n <= 1 {
		if _, err := deleteHeaderRows(ctx, tx, headerID); err != nil {
			return false, err
		}
		if err := tx.Commit(); err != nil {
			return false, err
		}
		s.log.Debug("deleted last version %s, cascaded to header %s", versionID, headerID)
		s.notifyChanged()
		return true, nil
	}

	if _, err := deleteVersionRows(ctx, tx, versionID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.log.Debug("deleted version %s", versionID)
	s.notifyChanged()
	return false, nil
}

// DeleteHeader removes a header, all its versions, and their line and step
// rows in one transaction. Returns domain.ErrNotFound if the header does
// not exist.
func (s *Store) DeleteHeader(ctx context.Context, headerID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := deleteHeaderRows(ctx, tx, headerID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("deleted header %s", headerID)
	s.notifyChanged()
	return nil
}

// SetFavorite flips the favorite flag on a header. Returns
// domain.ErrNotFound if the header does not exist.
func (s *Store) SetFavorite(ctx context.Context, headerID string, favorite bool) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE recipe_header SET is_favorite = ? WHERE id = ?`, favorite, headerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	s.notifyChanged()
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// nullable maps an empty string to NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
