// Package store implements the recipe graph store on SQLite: the normalized
// header/version/ingredient/step tables, the catalog tables, row-level
// upserts, the join queries the assembly layer reads from, and a change hub
// that broadcasts a signal after every successful write.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kbenzarti/forkbook/internal/logger"
)

// Option configures the store.
type Option func(*Store)

// WithSampleRecipes seeds two example recipes alongside the catalog
// bootstrap data when the database is created empty.
func WithSampleRecipes() Option {
	return func(s *Store) {
		s.seedSamples = true
	}
}

// Store owns the SQLite connection. Safe for concurrent use; the driver
// serializes writes and WAL keeps readers unblocked.
type Store struct {
	conn        *sql.DB
	log         *logger.Logger
	seedSamples bool

	hub changeHub
}

// Open opens or creates the recipe database at path. Use ":memory:" for an
// ephemeral store. The schema is created if missing, and the measurement
// catalog bootstrap set is seeded when the catalog is empty.
func Open(path string, log *logger.Logger, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The modernc driver opens a new connection per pool slot; an in-memory
	// database would vanish between them.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	s := &Store{conn: conn, log: log}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := s.seedIfEmpty(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("seeding: %w", err)
	}

	log.Debug("store opened at %s", path)
	return s, nil
}

// DB exposes the underlying handle for sibling packages that query the same
// database (the measurement catalog).
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS category (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS measure_unit (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			abbreviation      TEXT NOT NULL DEFAULT '',
			measurement_type  TEXT NOT NULL,
			conversion_factor REAL NOT NULL CHECK (conversion_factor > 0),
			is_system_unit    INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS standard_ingredient (
			id      TEXT PRIMARY KEY,
			name    TEXT NOT NULL,
			density REAL
		);

		CREATE TABLE IF NOT EXISTS recipe_header (
			id                     TEXT PRIMARY KEY,
			title                  TEXT NOT NULL,
			category_id            TEXT,
			image_url              TEXT NOT NULL DEFAULT '',
			default_prep_time_mins INTEGER NOT NULL DEFAULT 0,
			is_favorite            INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_header_favorite ON recipe_header(is_favorite);

		CREATE TABLE IF NOT EXISTS recipe_version (
			id                      TEXT PRIMARY KEY,
			header_id               TEXT NOT NULL REFERENCES recipe_header(id) ON DELETE CASCADE,
			name                    TEXT NOT NULL,
			commentary              TEXT NOT NULL DEFAULT '',
			override_prep_time_mins INTEGER NOT NULL DEFAULT 0,
			created_at              INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_version_header ON recipe_version(header_id);

		CREATE TABLE IF NOT EXISTS ingredient (
			id                     TEXT PRIMARY KEY,
			version_id             TEXT NOT NULL REFERENCES recipe_version(id) ON DELETE CASCADE,
			display_name           TEXT NOT NULL,
			standard_ingredient_id TEXT NOT NULL,
			quantity               REAL NOT NULL CHECK (quantity >= 0),
			unit_id                TEXT NOT NULL,
			item_order             INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingredient_version ON ingredient(version_id);

		CREATE TABLE IF NOT EXISTS instruction_step (
			id            TEXT PRIMARY KEY,
			version_id    TEXT NOT NULL REFERENCES recipe_version(id) ON DELETE CASCADE,
			description   TEXT NOT NULL,
			timer_seconds INTEGER,
			item_order    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_step_version ON instruction_step(version_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}
