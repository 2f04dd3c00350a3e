package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/clickarena/internal/arena/engine"
	"github.com/mcdev12/clickarena/internal/arena/events"
	"github.com/mcdev12/clickarena/internal/arena/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := resolveConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Lifecycle event publisher: JetStream when a NATS URL is configured,
	// otherwise a no-op.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		p, err := events.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream publisher")
		}
		publisher = p
	}

	arena := engine.NewArena(engine.Config{
		MatchDuration: time.Duration(cfg.MatchDurationSec) * time.Second,
	}, clockwork.NewRealClock(), publisher)

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), arena)
	wsHandler := gateway.NewWebSocketHandler(connectionManager, arena)

	server := setupServer(cfg, wsHandler)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("match_duration_sec", cfg.MatchDurationSec).
			Bool("events_enabled", cfg.NATSURL != "").
			Msg("arena server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	arena.Close()
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
	}

	log.Info().Msg("arena server shutdown complete")
}
