package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step. Statements run in a single transaction
// and the version is recorded with them.
type migration struct {
	version    int
	statements []string
}

// migrations must stay append-only and ordered by version.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS jobs (
				id         TEXT    NOT NULL PRIMARY KEY,
				guild_id   TEXT    NOT NULL,
				name       TEXT    NOT NULL,
				url        TEXT    NOT NULL,
				selector   TEXT    NOT NULL,
				channel_id TEXT    NOT NULL,
				interval   INTEGER NOT NULL CHECK (interval >= 1),
				active     INTEGER NOT NULL DEFAULT 1,
				created_at TEXT    NOT NULL,
				UNIQUE (guild_id, name)
			)`,

			`CREATE TABLE IF NOT EXISTS seen_links (
				guild_id TEXT NOT NULL,
				job_name TEXT NOT NULL,
				value    TEXT NOT NULL,
				seen_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
				PRIMARY KEY (guild_id, job_name, value)
			)`,
		},
	},
}

// latestVersion returns the highest known schema version.
func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate brings the database schema up to the latest version. Applied
// versions are skipped, so migrate is idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}
	return current, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: migrate v%d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate v%d: %w\nstatement: %s", m.version, err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("sqlite: record schema version %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: migrate v%d: commit: %w", m.version, err)
	}
	return nil
}
