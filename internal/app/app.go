// Package app assembles the service from configuration: blob storage, the
// repository variant, the optional event publisher, and the HTTP and gRPC
// transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"imagecollector/internal/config"
	"imagecollector/internal/fetcher"
	"imagecollector/internal/grpcapi"
	"imagecollector/internal/http/handler"
	"imagecollector/internal/http/middleware"
	"imagecollector/internal/logger"
	"imagecollector/internal/messaging"
	"imagecollector/internal/repository"
	"imagecollector/internal/repository/cached"
	"imagecollector/internal/repository/file"
	"imagecollector/internal/repository/postgres"
	"imagecollector/internal/repository/sqlite"
	"imagecollector/internal/service"
	"imagecollector/internal/storage"
)

// Transport modes accepted by Run.
const (
	ModeHTTP = "http"
	ModeGRPC = "grpc"
)

const (
	shutdownTimeout = 10 * time.Second
	minioPrefix     = "images"
)

// Options carries what New needs besides configuration. Registerer and
// Gatherer default to the global Prometheus registry.
type Options struct {
	Config      *config.AppConfig
	Logger      zerolog.Logger
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	OpenAPIPath string
}

// App is the assembled service.
type App struct {
	cfg *config.AppConfig
	log zerolog.Logger

	Repository repository.ImageRepository
	Publisher  messaging.Publisher
	Service    service.ImageService
	HTTP       *fiber.App
	GRPC       *grpc.Server
}

type connector interface {
	Connect(ctx context.Context) error
}

// New builds every component. The publisher is pre-warmed; a failed
// pre-warm is logged and the publisher retries on first use.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	reg, gatherer := opts.Registerer, opts.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	log := logger.Component(opts.Logger, "app")

	blobs, err := newBlobStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}
	ingestor := repository.NewIngestor(fetcher.NewHTTP(cfg.Storage.FetchTimeout), blobs)

	repo, err := newRepository(ctx, cfg, ingestor, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("init %s repository: %w", cfg.Storage.Type, err)
	}
	if cfg.Storage.CacheSize > 0 {
		c, err := cached.New(repo, cfg.Storage.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		repo = c
	}

	a := &App{cfg: cfg, log: log, Repository: repo}

	if cfg.Bus.Enabled {
		busMetrics, err := messaging.NewMetrics(reg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("register bus metrics: %w", err)
		}
		pub, err := newPublisher(cfg.Bus, opts.Logger, busMetrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Publisher = pub
		if c, ok := pub.(connector); ok {
			if err := c.Connect(ctx); err != nil {
				log.Warn().Str("event", "bus_prewarm_failed").Str("driver", cfg.Bus.Driver).Err(err).Send()
			}
		}
	}

	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register service metrics: %w", err)
	}
	a.Service = service.NewImageCollector(repo, service.Options{
		Publisher: a.Publisher,
		Topic:     cfg.Bus.Topic,
		Logger:    opts.Logger,
		Metrics:   svcMetrics,
	})

	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	a.HTTP = fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(),
		DisableStartupMessage: true,
	})
	a.HTTP.Use(otelfiber.Middleware())
	a.HTTP.Use(middleware.RequestID())
	a.HTTP.Use(middleware.Logger(opts.Logger))
	a.HTTP.Use(prom.Handler())

	pinger, _ := repo.(repository.Pinger)
	handler.RegisterRoutes(a.HTTP, handler.Deps{
		Service:     a.Service,
		StorageType: cfg.Storage.Type,
		Pinger:      pinger,
		Gatherer:    gatherer,
		OpenAPIPath: opts.OpenAPIPath,
	})

	a.GRPC = grpcapi.NewGRPCServer(a.Service, opts.Logger)

	log.Info().
		Str("event", "app_initialized").
		Str("storage_type", cfg.Storage.Type).
		Str("blob_backend", cfg.Storage.BlobBackend).
		Bool("bus_enabled", cfg.Bus.Enabled).
		Int("cache_size", cfg.Storage.CacheSize).
		Send()

	return a, nil
}

func newBlobStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Storage.BlobBackend {
	case config.BlobMinIO:
		return storage.NewMinIO(cfg.MinIO, minioPrefix)
	case config.BlobLocal, "":
		return storage.NewLocal(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Storage.BlobBackend)
	}
}

func newRepository(ctx context.Context, cfg *config.AppConfig, ing *repository.Ingestor, log zerolog.Logger) (repository.ImageRepository, error) {
	switch cfg.Storage.Type {
	case config.StorageFile:
		return file.NewImageFile(ing), nil
	case config.StorageSQLite:
		return sqlite.NewImageSQLite(ctx, cfg.Storage.SQLitePath, ing, log)
	case config.StoragePostgres:
		return postgres.NewImagePostgres(cfg.Database, ing, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newPublisher(cfg config.BusConfig, log zerolog.Logger, metrics *messaging.Metrics) (messaging.Publisher, error) {
	policy := messaging.RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
		SendTimeout: cfg.SendTimeout,
	}
	switch cfg.Driver {
	case config.BusPulsar:
		return messaging.NewPulsarPublisher(cfg.PulsarServiceURL, policy, log, metrics), nil
	case config.BusRedis:
		return messaging.NewRedisStreamPublisher(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, policy, log, metrics), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
}

// Run serves the selected transport until ctx is cancelled, then shuts it
// down gracefully.
func (a *App) Run(ctx context.Context, mode string) error {
	switch mode {
	case ModeHTTP:
		return a.runHTTP(ctx, ":"+a.cfg.Port)
	case ModeGRPC:
		lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.cfg.GRPCAddr, err)
		}
		return a.runGRPC(ctx, lis)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *App) runHTTP(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.HTTP.Listen(addr) }()
	a.log.Info().Str("event", "server_started").Str("mode", ModeHTTP).Str("addr", addr).Send()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.log.Info().Str("event", "server_stopping").Str("mode", ModeHTTP).Send()
	return a.HTTP.ShutdownWithContext(sctx)
}

func (a *App) runGRPC(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.GRPC.Serve(lis) }()
	a.log.Info().Str("event", "server_started").Str("mode", ModeGRPC).Str("addr", lis.Addr().String()).Send()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Str("event", "server_stopping").Str("mode", ModeGRPC).Send()
	done := make(chan struct{})
	go func() {
		a.GRPC.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		a.GRPC.Stop()
	}
	return nil
}

// Close releases the publisher and the repository.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if c, ok := a.Repository.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
