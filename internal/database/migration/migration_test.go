package migration

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestEnsureMigrated_Postgres(t *testing.T) {
	ctx := context.Background()

	t.Run("skips when table exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT to_regclass\('public.images'\)`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, EnsureMigrated(ctx, db, Postgres, zerolog.Nop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("runs every step when missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT to_regclass`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS images`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_images_created_at`).WillReturnResult(sqlmock.NewResult(0, 0))

		var buf bytes.Buffer
		require.NoError(t, EnsureMigrated(ctx, db, Postgres, zerolog.New(&buf)))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Contains(t, buf.String(), `"event":"db_migration_success"`)
		assert.Contains(t, buf.String(), `"migration_step":"create_table_images"`)
	})

	t.Run("sentinel failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT to_regclass`).WillReturnError(errors.New("conn refused"))

		err = EnsureMigrated(ctx, db, Postgres, zerolog.Nop())
		assert.ErrorContains(t, err, "failed to check sentinel table: conn refused")
	})

	t.Run("step failure stops the plan", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT to_regclass`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(ctx, db, Postgres, zerolog.Nop())
		assert.ErrorContains(t, err, "migration step create_table_images failed: permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureMigrated_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, EnsureMigrated(ctx, db, SQLite, zerolog.Nop()))
	// Second run takes the skip path.
	require.NoError(t, EnsureMigrated(ctx, db, SQLite, zerolog.Nop()))

	_, err = db.ExecContext(ctx,
		`INSERT INTO images (id, url, file_name, content_type, size, created_at, file_path) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"a", "http://x/a.jpg", "a.jpg", "image/jpeg", 1, "2024-01-01T00:00:00.000000000Z", "/tmp/a.jpg")
	assert.NoError(t, err)
}

func TestEnsureMigrated_UnknownDialect(t *testing.T) {
	err := EnsureMigrated(context.Background(), nil, Dialect("oracle"), zerolog.Nop())
	assert.ErrorContains(t, err, `unsupported dialect "oracle"`)
}
