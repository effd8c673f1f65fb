// Package repository contains the image persistence contract shared by every backend.
// Implementations live in subpackages (file, sqlite, postgres) inside this directory.
package repository

import (
	"context"

	"imagecollector/internal/model"
)

// ImageRepository persists image payloads and their metadata.
type ImageRepository interface {
	// Save downloads the payload behind req.SourceURL, stores it under the
	// configured storage root and upserts the metadata row keyed by req.ID.
	// It returns a *FetchError when the origin is unreachable or answers with a
	// non-success status, and a *StorageWriteError when the payload or the row
	// cannot be written. On error nothing is recorded for req.ID.
	Save(ctx context.Context, req model.ImageRequest) (*model.Image, error)

	// GetByID returns the stored image, or nil with a nil error when no image
	// has that id.
	GetByID(ctx context.Context, id string) (*model.Image, error)

	// GetAll returns a snapshot of every stored image.
	GetAll(ctx context.Context) ([]model.Image, error)
}

// Pinger is implemented by repositories backed by an external medium that can
// be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}
