// Package sqlite provides an ImageRepository backed by a single SQLite file.
// Every operation opens and closes its own handle, so the file can be shared
// by several processes on one host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagecollector/internal/database"
	"imagecollector/internal/database/migration"
	"imagecollector/internal/model"
	"imagecollector/internal/repository"
)

// createdAtLayout is fixed width so lexical order on the TEXT column matches
// chronological order.
const createdAtLayout = "2006-01-02T15:04:05.000000Z"

const columns = `id, url, file_name, content_type, size, created_at, file_path`

type openFunc func(ctx context.Context, path string) (*sql.DB, error)

// ImageSQLite is a SQLite implementation of repository.ImageRepository.
type ImageSQLite struct {
	path     string
	ingestor *repository.Ingestor
	open     openFunc
}

var (
	_ repository.ImageRepository = (*ImageSQLite)(nil)
	_ repository.Pinger          = (*ImageSQLite)(nil)
)

// NewImageSQLite prepares the database file at path and creates the schema.
func NewImageSQLite(ctx context.Context, path string, ingestor *repository.Ingestor, log zerolog.Logger) (*ImageSQLite, error) {
	return newImageSQLite(ctx, path, ingestor, log, database.OpenSQLite)
}

func newImageSQLite(ctx context.Context, path string, ingestor *repository.Ingestor, log zerolog.Logger, open openFunc) (*ImageSQLite, error) {
	r := &ImageSQLite{path: path, ingestor: ingestor, open: open}

	db, err := open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, migration.SQLite, log); err != nil {
		return nil, err
	}
	return r, nil
}

// Save downloads and stores the payload, then upserts its metadata row.
func (r *ImageSQLite) Save(ctx context.Context, req model.ImageRequest) (*model.Image, error) {
	stored, err := r.ingestor.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}

	img := stored.Image
	err = r.withDB(ctx, func(db *sql.DB) error {
		const q = `INSERT OR REPLACE INTO images (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
		_, err := db.ExecContext(ctx, q,
			img.ID,
			img.SourceURL,
			img.FileName,
			img.ContentType,
			img.SizeBytes,
			img.CreatedAt.UTC().Format(createdAtLayout),
			stored.FilePath,
		)
		return err
	})
	if err != nil {
		return nil, &repository.StorageWriteError{Op: "upsert", Err: err}
	}
	return &img, nil
}

// GetByID returns nil, nil when no row has the id.
func (r *ImageSQLite) GetByID(ctx context.Context, id string) (*model.Image, error) {
	var img *model.Image
	err := r.withDB(ctx, func(db *sql.DB) error {
		const q = `SELECT ` + columns + ` FROM images WHERE id = ?`
		got, err := scanImage(db.QueryRowContext(ctx, q, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		img = got
		return err
	})
	if err != nil {
		return nil, &repository.StorageReadError{Op: "get by id", Err: err}
	}
	return img, nil
}

// GetAll returns every image, newest first.
func (r *ImageSQLite) GetAll(ctx context.Context) ([]model.Image, error) {
	items := make([]model.Image, 0)
	err := r.withDB(ctx, func(db *sql.DB) error {
		const q = `SELECT ` + columns + ` FROM images ORDER BY created_at DESC, id DESC`
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			img, err := scanImage(rows)
			if err != nil {
				return err
			}
			items = append(items, *img)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &repository.StorageReadError{Op: "get all", Err: err}
	}
	return items, nil
}

// Ping opens the database file and checks it answers.
func (r *ImageSQLite) Ping(ctx context.Context) error {
	return r.withDB(ctx, func(db *sql.DB) error {
		return db.PingContext(ctx)
	})
}

// Close is a no-op; no handle outlives an operation.
func (r *ImageSQLite) Close() error { return nil }

func (r *ImageSQLite) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := r.open(ctx, r.path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*model.Image, error) {
	var (
		img       model.Image
		createdAt string
		filePath  string
	)
	if err := s.Scan(
		&img.ID,
		&img.SourceURL,
		&img.FileName,
		&img.ContentType,
		&img.SizeBytes,
		&createdAt,
		&filePath,
	); err != nil {
		return nil, err
	}

	ts, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	img.CreatedAt = ts
	return &img, nil
}
