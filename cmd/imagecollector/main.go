package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"imagecollector/internal/app"
	"imagecollector/internal/config"
	"imagecollector/internal/logger"
	"imagecollector/internal/otel"
)

func main() {
	mode := flag.String("mode", app.ModeHTTP, "transport to serve: http or grpc")
	openapi := flag.String("openapi", "openapi.yaml", "path of the OpenAPI document served at /openapi.yaml")
	flag.Parse()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Location())
	if err := cfg.Validate(); err != nil {
		log.Fatal().Str("event", "config_invalid").Err(err).Send()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger.Component(log, "otel"))
	if err != nil {
		log.Fatal().Str("event", "tracing_init_failed").Err(err).Send()
	}

	a, err := app.New(ctx, app.Options{
		Config:      cfg,
		Logger:      log,
		OpenAPIPath: *openapi,
	})
	if err != nil {
		log.Fatal().Str("event", "startup_failed").Err(err).Send()
	}

	runErr := a.Run(ctx, *mode)

	if err := a.Close(); err != nil {
		log.Error().Str("event", "close_failed").Err(err).Send()
	}
	if err := shutdownTracing(context.Background()); err != nil {
		log.Error().Str("event", "tracing_shutdown_failed").Err(err).Send()
	}
	if runErr != nil {
		log.Fatal().Str("event", "server_failed").Str("mode", *mode).Err(runErr).Send()
	}
	log.Info().Str("event", "server_stopped").Str("mode", *mode).Send()
}
