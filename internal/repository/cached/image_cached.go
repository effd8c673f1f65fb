// Package cached wraps an ImageRepository with an in-process LRU cache in
// front of GetByID.
package cached

import (
	"context"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"imagecollector/internal/model"
	"imagecollector/internal/repository"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagecollector_cache_hits_total",
		Help: "Total number of image lookups served from the LRU cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagecollector_cache_misses_total",
		Help: "Total number of image lookups that fell through to storage.",
	})
)

// ImageCached is a read-through cache over another ImageRepository. Saves
// write through, so a cached entry is never older than the last Save made
// via this instance.
type ImageCached struct {
	next  repository.ImageRepository
	cache *lru.Cache[string, model.Image]
}

var (
	_ repository.ImageRepository = (*ImageCached)(nil)
	_ repository.Pinger          = (*ImageCached)(nil)
)

// New wraps next with a cache holding up to size images.
func New(next repository.ImageRepository, size int) (*ImageCached, error) {
	c, err := lru.New[string, model.Image](size)
	if err != nil {
		return nil, err
	}
	return &ImageCached{next: next, cache: c}, nil
}

func (r *ImageCached) Save(ctx context.Context, req model.ImageRequest) (*model.Image, error) {
	img, err := r.next.Save(ctx, req)
	if err != nil {
		return nil, err
	}
	r.cache.Add(img.ID, *img)
	return img, nil
}

// GetByID serves from cache when possible. Absent ids are not cached.
func (r *ImageCached) GetByID(ctx context.Context, id string) (*model.Image, error) {
	if img, ok := r.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return &img, nil
	}
	cacheMissesTotal.Inc()

	img, err := r.next.GetByID(ctx, id)
	if err != nil || img == nil {
		return img, err
	}
	r.cache.Add(id, *img)
	return img, nil
}

func (r *ImageCached) GetAll(ctx context.Context) ([]model.Image, error) {
	return r.next.GetAll(ctx)
}

// Ping forwards to the wrapped repository when it supports health checks.
func (r *ImageCached) Ping(ctx context.Context) error {
	if p, ok := r.next.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close purges the cache and closes the wrapped repository if it is closable.
func (r *ImageCached) Close() error {
	r.cache.Purge()
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
