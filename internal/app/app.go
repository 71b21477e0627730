package app

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/config"
	"github.com/gokatarajesh/kbc-quiz/internal/logging"
	"github.com/gokatarajesh/kbc-quiz/internal/metrics"
	"github.com/gokatarajesh/kbc-quiz/internal/question"
	"github.com/gokatarajesh/kbc-quiz/internal/quiz"
	"github.com/gokatarajesh/kbc-quiz/internal/server"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
	"github.com/gokatarajesh/kbc-quiz/internal/storage"
	"github.com/gokatarajesh/kbc-quiz/internal/storage/pgstore"
	"github.com/gokatarajesh/kbc-quiz/internal/storage/redisstore"
	"github.com/gokatarajesh/kbc-quiz/internal/storage/sqlitestore"
	"github.com/gokatarajesh/kbc-quiz/internal/web"
)

// Application aggregates shared infrastructure (storage, controller, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	controller *quiz.Controller
	http       *http.Server
	closers    []func() error
}

// New bootstraps the logger, session storage, question bank, controller and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("storage", cfg.Storage.Driver).Msg("starting application bootstrap")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	quizMetrics := metrics.New(registry)

	a := &Application{cfg: cfg, logger: logger}

	primary, err := a.openStorage(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	kv := storage.NewFallback(primary, logger, quizMetrics.StorageFallback)

	bank, err := question.Load(cfg.Quiz.BankPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	logger.Info().Int("questions", bank.Size()).Msg("question bank loaded")

	seed := cfg.Quiz.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	store := session.NewStore(kv, cfg.Storage.KeyPrefix, logger)
	a.controller = quiz.NewController(bank, store, logger, quiz.Options{
		BatchSize:             cfg.Quiz.BatchSize,
		FeedbackDelay:         cfg.Quiz.FeedbackDelay,
		PhoneFriendConfidence: cfg.Quiz.PhoneFriendConfidence,
		Rand:                  rand.New(rand.NewSource(seed)),
		Recorder:              quizMetrics,
	})

	webHandler, err := web.NewHandler(a.controller, cfg.Quiz.FeedbackDelay, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.http = server.NewHTTPServer(cfg, logger, kv, webHandler, registry, quizMetrics)
	return a, nil
}

// openStorage connects the configured backend. Memory needs no connection.
func (a *Application) openStorage(ctx context.Context) (storage.KV, error) {
	cfg := a.cfg
	switch cfg.Storage.Driver {
	case storage.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		a.closers = append(a.closers, client.Close)
		return redisstore.New(client, a.logger), nil

	case storage.DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("parse postgres config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		db := stdlib.OpenDBFromPool(pool)
		err = pgstore.Migrate(ctx, db)
		_ = db.Close()
		if err != nil {
			// The fallback takes over on the first failed read, so a down database
			// does not stop the quiz from starting.
			a.logger.Warn().Err(err).Msg("postgres migrations not applied")
		}
		return pgstore.New(pool, a.logger), nil

	case storage.DriverSQLite:
		st, err := sqlitestore.Open(cfg.SQLite.Path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil

	default:
		return storage.NewMemory(), nil
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		a.controller.Close()
		a.close()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.controller.Close()
	a.close()

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("storage shutdown error")
		}
	}
	a.closers = nil
}
