package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Dialect selects the SQL flavour of the schema steps.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = map[Dialect][]migrationStep{
	Postgres: {
		{
			Name: "create_table_images",
			SQL: `CREATE TABLE IF NOT EXISTS images (
  id           TEXT        PRIMARY KEY,
  url          TEXT        NOT NULL,
  file_name    TEXT        NOT NULL,
  content_type TEXT        NOT NULL,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  created_at   TIMESTAMPTZ NOT NULL,
  file_path    TEXT        NOT NULL
);`,
		},
		{
			Name: "create_index_images_created_at",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_images_created_at ON images (created_at);`,
		},
	},
	SQLite: {
		{
			Name: "create_table_images",
			SQL: `CREATE TABLE IF NOT EXISTS images (
  id           TEXT    PRIMARY KEY,
  url          TEXT    NOT NULL,
  file_name    TEXT    NOT NULL,
  content_type TEXT    NOT NULL,
  size         INTEGER NOT NULL CHECK (size >= 0),
  created_at   TEXT    NOT NULL,
  file_path    TEXT    NOT NULL
);`,
		},
		{
			Name: "create_index_images_created_at",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_images_created_at ON images (created_at);`,
		},
	},
}

var sentinelQuery = map[Dialect]string{
	Postgres: "SELECT to_regclass('public.images') IS NOT NULL",
	SQLite:   "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'images'",
}

// EnsureMigrated checks whether the images table exists and creates the
// schema if it doesn't. Every step is idempotent, so concurrent callers racing
// past the sentinel check are harmless.
func EnsureMigrated(ctx context.Context, db *sql.DB, dialect Dialect, log zerolog.Logger) error {
	plan, ok := steps[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	log = log.With().Str("component", "database").Str("dialect", string(dialect)).Logger()
	start := time.Now()

	log.Debug().Str("event", "db_migration_check").Str("status", "starting").Send()

	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery[dialect]).Scan(&exists); err != nil {
		log.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Debug().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Send()

	for _, step := range plan {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Err(err).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Send()
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Send()
	}

	log.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Send()

	return nil
}
