// Package file provides an ImageRepository that writes payloads to the storage
// root and keeps metadata in process memory. Metadata is lost on restart and the
// repository must not be shared between processes.
package file

import (
	"context"
	"sync"

	"imagecollector/internal/model"
	"imagecollector/internal/repository"
)

// ImageFile is an in-memory implementation of repository.ImageRepository.
type ImageFile struct {
	ingestor *repository.Ingestor

	mu    sync.RWMutex
	byID  map[string]model.Image
	order []string
}

// NewImageFile creates a new ImageFile repository.
func NewImageFile(ingestor *repository.Ingestor) *ImageFile {
	return &ImageFile{
		ingestor: ingestor,
		byID:     make(map[string]model.Image),
	}
}

var _ repository.ImageRepository = (*ImageFile)(nil)

// Save downloads and stores the payload, then records its metadata. Saving an
// existing id replaces the metadata but keeps its original list position.
func (r *ImageFile) Save(ctx context.Context, req model.ImageRequest) (*model.Image, error) {
	stored, err := r.ingestor.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}

	img := stored.Image
	r.mu.Lock()
	if _, exists := r.byID[img.ID]; !exists {
		r.order = append(r.order, img.ID)
	}
	r.byID[img.ID] = img
	r.mu.Unlock()

	return &img, nil
}

func (r *ImageFile) GetByID(_ context.Context, id string) (*model.Image, error) {
	r.mu.RLock()
	img, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &img, nil
}

// GetAll returns images in insertion order.
func (r *ImageFile) GetAll(_ context.Context) ([]model.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Image, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.byID[id])
	}
	return items, nil
}
