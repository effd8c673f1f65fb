package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"imagecollector/internal/config"
	"imagecollector/internal/database"
	"imagecollector/internal/database/migration"
	"imagecollector/internal/model"
	"imagecollector/internal/repository"
)

const columns = `id, url, file_name, content_type, size, created_at, file_path`

type openFunc func(ctx context.Context) (*sql.DB, error)

// ImagePostgres is a PostgreSQL implementation of repository.ImageRepository.
// The connection pool is created on first use; a failed attempt leaves it
// unset so the next call tries again.
type ImagePostgres struct {
	ingestor *repository.Ingestor
	open     openFunc
	log      zerolog.Logger

	mu sync.Mutex
	db *sql.DB
}

var (
	_ repository.ImageRepository = (*ImagePostgres)(nil)
	_ repository.Pinger          = (*ImagePostgres)(nil)
)

// NewImagePostgres creates a new ImagePostgres repository. No connection is
// made until the first operation.
func NewImagePostgres(cfg config.DatabaseConfig, ingestor *repository.Ingestor, log zerolog.Logger) *ImagePostgres {
	return newImagePostgres(func(ctx context.Context) (*sql.DB, error) {
		return database.NewPostgres(ctx, cfg)
	}, ingestor, log)
}

func newImagePostgres(open openFunc, ingestor *repository.Ingestor, log zerolog.Logger) *ImagePostgres {
	return &ImagePostgres{ingestor: ingestor, open: open, log: log}
}

func (r *ImagePostgres) pool(ctx context.Context) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, migration.Postgres, r.log); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.db = db
	return db, nil
}

// Save acquires the pool, downloads and stores the payload, then upserts its
// metadata row. An unreachable database leaves no payload behind.
func (r *ImagePostgres) Save(ctx context.Context, req model.ImageRequest) (*model.Image, error) {
	db, err := r.pool(ctx)
	if err != nil {
		return nil, &repository.StorageWriteError{Op: "connect", Err: err}
	}

	stored, err := r.ingestor.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO images (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			url          = EXCLUDED.url,
			file_name    = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			size         = EXCLUDED.size,
			created_at   = EXCLUDED.created_at,
			file_path    = EXCLUDED.file_path
	`
	img := stored.Image
	if _, err := db.ExecContext(ctx, q,
		img.ID,
		img.SourceURL,
		img.FileName,
		img.ContentType,
		img.SizeBytes,
		img.CreatedAt,
		stored.FilePath,
	); err != nil {
		return nil, &repository.StorageWriteError{Op: "upsert", Err: err}
	}
	return &img, nil
}

// GetByID returns nil, nil when no row has the id.
func (r *ImagePostgres) GetByID(ctx context.Context, id string) (*model.Image, error) {
	db, err := r.pool(ctx)
	if err != nil {
		return nil, &repository.StorageReadError{Op: "connect", Err: err}
	}

	const q = `SELECT ` + columns + ` FROM images WHERE id = $1`
	img, err := scanImage(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &repository.StorageReadError{Op: "get by id", Err: err}
	}
	return img, nil
}

// GetAll returns every image, newest first.
func (r *ImagePostgres) GetAll(ctx context.Context) ([]model.Image, error) {
	db, err := r.pool(ctx)
	if err != nil {
		return nil, &repository.StorageReadError{Op: "connect", Err: err}
	}

	const q = `SELECT ` + columns + ` FROM images ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, &repository.StorageReadError{Op: "get all", Err: err}
	}
	defer rows.Close()

	items := make([]model.Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, &repository.StorageReadError{Op: "get all", Err: err}
		}
		items = append(items, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, &repository.StorageReadError{Op: "get all", Err: err}
	}
	return items, nil
}

func (r *ImagePostgres) Ping(ctx context.Context) error {
	db, err := r.pool(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the pool if one was created. The repository reconnects on
// the next call.
func (r *ImagePostgres) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*model.Image, error) {
	var (
		img      model.Image
		filePath string
	)
	if err := s.Scan(
		&img.ID,
		&img.SourceURL,
		&img.FileName,
		&img.ContentType,
		&img.SizeBytes,
		&img.CreatedAt,
		&filePath,
	); err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}
