package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/client"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/database"
	"github.com/stemsi/tutor-gateway/internal/events"
	"github.com/stemsi/tutor-gateway/internal/handler"
	"github.com/stemsi/tutor-gateway/internal/logger"
	"github.com/stemsi/tutor-gateway/internal/repository"
	"github.com/stemsi/tutor-gateway/internal/router"
	"github.com/stemsi/tutor-gateway/internal/service"
	"github.com/stemsi/tutor-gateway/internal/validator"
	"github.com/stemsi/tutor-gateway/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("upstream", cfg.UpstreamBaseURL).
		Msg("Starting Tutor Gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Upstream Client ──────────────────────────────────────────────
	aiClient, err := client.NewAIClient(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build upstream client")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	publisher := events.NewPublisher(rdb, log)
	tokenService := service.NewTokenService(cfg)
	snapshotService := service.NewSnapshotService(cfg, rdb, log)
	orchestrator := service.NewChatOrchestrator(cfg, aiClient, snapshotService, publisher, log)
	practiceController := service.NewPracticeController(cfg, aiClient, attemptRepo, rdb, publisher, log)
	practiceController.SetNotifier(orchestrator)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Chat:     handler.NewChatHandler(orchestrator),
		Practice: handler.NewPracticeHandler(practiceController, attemptRepo),
		WS:       handler.NewWSHandler(publisher, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(aiClient),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	archiveWorker := worker.NewArchiveWorker(attemptRepo, rdb, log)
	go archiveWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokenService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the archive worker and wait for the queue to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow the worker to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
