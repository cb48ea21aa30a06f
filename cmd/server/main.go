package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/database"
	"github.com/proctorhub/assessment-backend/internal/handler"
	"github.com/proctorhub/assessment-backend/internal/logger"
	"github.com/proctorhub/assessment-backend/internal/middleware"
	"github.com/proctorhub/assessment-backend/internal/repository"
	"github.com/proctorhub/assessment-backend/internal/router"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/proctorhub/assessment-backend/internal/validator"
	"github.com/proctorhub/assessment-backend/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting assessment backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pool       *pgxpool.Pool
		rdb        *redis.Client
		store      service.AttemptStore
		catalog    service.ExamCatalog
		access     service.AccessChecker
		publishers service.MultiPublisher
	)

	// ─── Connect Stores ────────────────────────────────────────────────
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryExamCatalog()
		if cfg.ExamSeedFile != "" {
			if err := mem.LoadFile(cfg.ExamSeedFile); err != nil {
				log.Fatal().Err(err).Str("file", cfg.ExamSeedFile).Msg("Failed to load exam seed file")
			}
		}
		store = repository.NewMemoryAttemptStore()
		catalog = mem
		access = mem
		log.Warn().Msg("Using in-memory store: attempts are lost on restart")

	case config.StoreDriverPostgres, config.StoreDriverMongo:
		var err error
		pool, err = database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		catalog = repository.NewCachedExamCatalog(repository.NewExamRepository(pool), rdb, cfg.ExamCacheTTL, log)
		access = repository.NewAccessRepository(pool)
		publishers = append(publishers, service.NewRedisPublisher(rdb, true))

		if cfg.StoreDriver == config.StoreDriverMongo {
			client, db, err := database.NewMongoDatabase(ctx, cfg, log)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
			}
			defer client.Disconnect(context.Background())

			mongoStore := repository.NewMongoAttemptStore(db, "attempts")
			if err := mongoStore.EnsureIndexes(ctx); err != nil {
				log.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
			}
			store = mongoStore
		} else {
			store = repository.NewAttemptRepository(pool)
		}

	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Connect to RabbitMQ (optional) ────────────────────────────────
	if cfg.AMQPURL != "" {
		conn, ch, err := database.NewRabbitMQChannel(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer conn.Close()
		defer ch.Close()
		publishers = append(publishers, service.NewAMQPPublisher(ch, cfg.AMQPExchange))
	}

	// ─── Initialize Services ──────────────────────────────────────────
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	attemptService := service.NewAttemptService(store, catalog, access, publishers, log,
		service.WithMaxWarnings(cfg.MaxWarnings))
	dashboardService := service.NewDashboardService(store, catalog)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Assessment: handler.NewAssessmentHandler(attemptService, log),
		Candidate:  handler.NewCandidateHandler(dashboardService, log),
		Admin:      handler.NewAdminHandler(dashboardService, log),
		WS:         handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
	}
	if rdb != nil {
		handlers.Monitor = handler.NewMonitorHandler(rdb, dashboardService, log)
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if pool != nil && rdb != nil {
		proctorLog := worker.NewProctorLogWorker(pool, rdb, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			proctorLog.Start(workerCtx)
		}()
	}
	if cfg.DeadlineSweep > 0 {
		sweeper := worker.NewDeadlineSweeper(store, attemptService, cfg.DeadlineSweep, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	var startLimiter *middleware.RateLimiter
	if cfg.StartRateLimit > 0 {
		startLimiter = middleware.NewRateLimiter(cfg.StartRateLimit, time.Minute)
		defer startLimiter.Stop()
	}
	r := router.SetupRouter(tokenService, handlers, startLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Stop background workers and wait for their buffers to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
