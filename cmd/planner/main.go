package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"planner/internal/cli"
	"planner/internal/config"
	apphttp "planner/internal/http"
	"planner/internal/log"
	"planner/internal/recorder"
	"planner/internal/services"
	"planner/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig(log.ComponentApp, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	sessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize session store", log.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}
	defer sessions.Close()

	journal, err := recorder.NewFromConfig(ctx, cfg, logger.WithComponent(log.ComponentStorage).Logger)
	if err != nil {
		logger.Error("Failed to initialize calculation journal", log.FieldError, err)
		os.Exit(1)
	}

	planner := services.NewPlanService(journal.Recorder, logger.WithComponent(log.ComponentPlan).Logger)
	defer func() {
		if err := planner.Close(); err != nil {
			logger.Warn("Failed to close journal", log.FieldError, err)
		}
	}()

	defaults, currency := cfg.CalculatorDefaults()
	var opts []apphttp.Option
	if journal.SQLite != nil {
		opts = append(opts,
			apphttp.WithJournal(journal.SQLite),
			apphttp.WithReadinessCheck("sqlite", journal.SQLite.Ping))
	}
	if journal.AMQP != nil {
		client := journal.AMQP
		opts = append(opts, apphttp.WithReadinessCheck("amqp", func(context.Context) error {
			if !client.Healthy() {
				return errors.New("broker unavailable")
			}
			return nil
		}))
	}
	if rs, ok := sessions.(*session.RedisStore); ok {
		opts = append(opts, apphttp.WithReadinessCheck("redis", rs.Ping))
	}

	srv := apphttp.NewServer(apphttp.Settings{
		Addr:          ":" + cfg.Port,
		Defaults:      defaults,
		Currency:      currency,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
		RateLimit:     cfg.RateLimit,
	}, planner, sessions, logger, opts...)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting planner server",
			"port", cfg.Port,
			"session_backend", cfg.SessionBackend,
			"journal", journal.Backends)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (session.Store, error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using redis sessions", "addr", cfg.RedisAddr)
		return store, nil
	default:
		logger.Info("Using in-memory sessions", "max_entries", cfg.SessionMaxEntries, "ttl", cfg.SessionTTL)
		return session.NewMemoryStore(cfg.SessionMaxEntries, cfg.SessionTTL, cfg.SessionSweepCron,
			logger.WithComponent(log.ComponentSession).Logger)
	}
}
