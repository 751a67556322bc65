package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"visitwise-edge-go/internal/api"
	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/identity"
	"visitwise-edge-go/internal/logging"
	"visitwise-edge-go/internal/pipeline"
	"visitwise-edge-go/internal/services/messaging"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogdyEnabled {
		if writer, _, err := logging.StartLogdy(cfg); err == nil {
			log.Logger = log.Output(io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, writer))
		} else {
			log.Warn().Err(err).Msg("Failed to start Logdy UI")
		}
	}

	provider := identity.NewProvider(cfg.DeviceIDFile, cfg.DefaultDeviceID)

	events, closeEvents := connectEvents(cfg, provider.DeviceID)
	defer closeEvents()

	p, err := pipeline.New(cfg, provider, events)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	log.Info().
		Str("device_id", p.DeviceID()).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("clip_dir", cfg.ClipDir).
		Msg("Starting edge recorder")

	server := api.NewServer(cfg, logging.NewServiceLogger(p.DeviceID(), "api"), p.DeviceID, p.Tracker(), p.Uploads(), p.Publisher())
	server.Setup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Status API failed")
		}
	}()

	p.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-p.Fatal():
		log.Error().Err(err).Msg("Pipeline failed, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Status API forced to shutdown")
	}
	p.Shutdown(ctx)

	log.Info().Msg("Shutdown complete")
}

// connectEvents establishes the optional NATS event channel. The pipeline
// runs identically with events disabled; a broker outage must never keep
// the recorder from starting.
func connectEvents(cfg *config.Config, deviceID messaging.DeviceID) (*messaging.Events, func()) {
	if !cfg.NatsEnabled {
		return nil, func() {}
	}

	svc, err := messaging.NewService(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, event publishing disabled")
		return nil, func() {}
	}

	events := messaging.NewEvents(svc, deviceID, cfg.EventSubjectPrefix, log.With().Str("service", "messaging").Logger())
	return events, svc.Shutdown
}
