package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"imagecollector/internal/messaging"
	"imagecollector/internal/model"
	"imagecollector/internal/repository"
)

var ErrNotFound = errors.New("image not found")

// ImageService defines the use cases for collecting images.
type ImageService interface {
	// Collect downloads the image at req.SourceURL, persists it and announces
	// it on the bus when a publisher is configured. Publish failures never
	// fail the call.
	Collect(ctx context.Context, req model.ImageRequest) (*model.Image, error)

	// ListAll returns every stored image in the repository's order.
	ListAll(ctx context.Context) ([]model.Image, error)

	// Get returns a single image, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Image, error)
}

// Options configures an ImageCollector. Publisher may be nil to disable
// event publication.
type Options struct {
	Publisher messaging.Publisher
	Topic     string
	Logger    zerolog.Logger
	Metrics   *Metrics
}

// imageCollector is a concrete implementation of ImageService.
type imageCollector struct {
	repo      repository.ImageRepository
	publisher messaging.Publisher
	topic     string
	log       zerolog.Logger
	metrics   *Metrics
}

// NewImageCollector constructs a new ImageService.
func NewImageCollector(repo repository.ImageRepository, opts Options) ImageService {
	return &imageCollector{
		repo:      repo,
		publisher: opts.Publisher,
		topic:     opts.Topic,
		log:       opts.Logger.With().Str("component", "service").Logger(),
		metrics:   opts.Metrics,
	}
}

func (s *imageCollector) Collect(ctx context.Context, req model.ImageRequest) (*model.Image, error) {
	if err := req.Validate(); err != nil {
		s.metrics.ingested("invalid")
		return nil, err
	}
	req = req.WithID()

	img, err := s.repo.Save(ctx, req)
	if err != nil {
		result := "storage_error"
		if repository.IsFetchError(err) {
			result = "fetch_error"
		}
		s.metrics.ingested(result)
		s.log.Warn().
			Str("event", "ingest_failed").
			Str("image_id", req.ID).
			Str("source_url", req.SourceURL).
			Err(err).
			Send()
		return nil, fmt.Errorf("save image %s: %w", req.ID, err)
	}
	s.metrics.ingested("success")

	s.log.Info().
		Str("event", "image_collected").
		Str("image_id", img.ID).
		Str("source_url", img.SourceURL).
		Int64("size_bytes", img.SizeBytes).
		Str("content_type", img.ContentType).
		Send()

	if s.publisher != nil {
		if !s.publisher.Publish(ctx, s.topic, model.NewImageCreatedEvent(*img)) {
			s.log.Warn().
				Str("event", "image_event_dropped").
				Str("image_id", img.ID).
				Str("topic", s.topic).
				Send()
		}
	}

	return img, nil
}

func (s *imageCollector) ListAll(ctx context.Context) ([]model.Image, error) {
	return s.repo.GetAll(ctx)
}

func (s *imageCollector) Get(ctx context.Context, id string) (*model.Image, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNotFound
	}
	return img, nil
}

// Metrics counts ingestion outcomes. A nil *Metrics records nothing.
type Metrics struct {
	ingestionsTotal *prometheus.CounterVec
}

// NewMetrics creates ingestion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagecollector_ingestions_total",
				Help: "Total number of ingestion calls by result.",
			},
			[]string{"result"},
		),
	}
	if err := reg.Register(m.ingestionsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) ingested(result string) {
	if m == nil {
		return
	}
	m.ingestionsTotal.WithLabelValues(result).Inc()
}
