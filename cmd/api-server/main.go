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

	"github.com/dentaflow/clinic/internal/api"
	"github.com/dentaflow/clinic/internal/appointment"
	"github.com/dentaflow/clinic/internal/availability"
	"github.com/dentaflow/clinic/internal/billing"
	"github.com/dentaflow/clinic/internal/catalog"
	"github.com/dentaflow/clinic/internal/config"
	"github.com/dentaflow/clinic/internal/db"
	"github.com/dentaflow/clinic/internal/payment"
	"github.com/dentaflow/clinic/internal/queue"
	redisclient "github.com/dentaflow/clinic/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("service", "api-server").Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		logger.Fatal().Err(err).Msg("schema migration error")
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	catalogRepo := catalog.NewPgRepository(pgPool)
	appointmentRepo := appointment.NewPgRepository(pgPool)
	queueRepo := queue.NewPgRepository(pgPool)
	billingRepo := billing.NewPgRepository(pgPool)
	paymentRepo := payment.NewPgRepository(pgPool)

	counter := redisclient.NewQueueCounter(rdb)

	// The counter survives Redis restarts only through this re-seed:
	// numbers already issued must never be re-issued.
	seedCtx, cancelSeed := context.WithTimeout(rootCtx, 5*time.Second)
	maxNumber, err := queueRepo.MaxNumber(seedCtx)
	if err == nil {
		err = counter.EnsureAtLeast(seedCtx, maxNumber)
	}
	cancelSeed()
	if err != nil {
		logger.Fatal().Err(err).Msg("queue counter seed error")
	}

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	feed := redisclient.NewFeed(rdb, logger)

	cat := catalog.NewCatalog(catalogRepo)
	appointments := appointment.NewService(appointmentRepo, cat, cfg.Location, logger)
	calculator := availability.NewCalculator(appointments, cfg.Location)
	biller := billing.NewService(billingRepo, logger)
	engine := queue.NewEngine(queueRepo, appointments, biller, counter, locker, feed, cfg.Location, logger)
	payments := payment.NewService(paymentRepo, biller, logger)

	router := api.NewRouter(api.RouterConfig{
		Catalog:      cat,
		Availability: calculator,
		Appointments: appointments,
		Queue:        engine,
		Billing:      biller,
		Payments:     payments,
		Feed:         feed,
		PgPool:       pgPool,
		Redis:        rdb,
		JWTSecret:    []byte(cfg.JWTSecret),
		Env:          cfg.Env,
		Version:      version,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()

	logger.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
