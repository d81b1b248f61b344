package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/database"
	"github.com/sanjio/sanjio/internal/handler"
	"github.com/sanjio/sanjio/internal/logger"
	"github.com/sanjio/sanjio/internal/middleware"
	"github.com/sanjio/sanjio/internal/repository"
	"github.com/sanjio/sanjio/internal/router"
	"github.com/sanjio/sanjio/internal/service"
	"github.com/sanjio/sanjio/internal/validator"
	"github.com/sanjio/sanjio/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Sanjio exam server")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{AppName: "sanjio-server", MaxConns: cfg.MaxDBConns}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, "sanjio-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	profileRepo := repository.NewProfileRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	participationRepo := repository.NewParticipationRepository(pool)
	answerRepo := repository.NewAttemptAnswerRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, profileRepo)
	examService := service.NewExamService(examRepo, questionRepo, participationRepo, rdb, cfg.ExamInfoTTL, log)
	attemptService := service.NewAttemptService(examService, participationRepo, answerRepo, rdb, log)
	questionService := service.NewQuestionService(examRepo, questionRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Exam:     handler.NewExamHandler(examService, attemptService, log),
		Admin:    handler.NewAdminHandler(examService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		WS:       handler.NewWSHandler(examService, attemptService, log, cfg.AllowedOrigins),
		Health:   handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	autosaveWorker := worker.NewAutosaveWorker(answerRepo, rdb, log)
	go func() {
		defer close(workerDone)
		autosaveWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRate, time.Minute)
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the autosave worker and wait for it to drain its queue.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(cfg.DrainTimeout):
		log.Warn().Msg("Autosave worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
