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

	"github.com/hackgods/clinic-slot-queue/internal/api"
	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Str("sequence", cfg.QueueSequence).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build booking stack")
	}
	defer stack.Close()

	if cfg.StoreBackend == config.BackendMemory {
		sum, err := app.Seed(rootCtx, stack.Directory, stack.Ledger, app.DefaultSeedOptions(stack.Registry.Today()), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to seed in-memory store")
		}
		logger.Info().Int("doctors", sum.Doctors).Int("slots", sum.Slots).Msg("in-memory store seeded")
	}

	srv := newServer(cfg, stack, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stack.Close()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}

func newServer(cfg config.Config, stack *app.Stack, logger zerolog.Logger) *http.Server {
	router := api.NewRouter(api.RouterConfig{
		Service:        stack.Registry,
		Queue:          stack.Queue,
		Slots:          stack.Ledger,
		Directory:      stack.Directory,
		Health:         api.NewHealthHandler(stack.Pool, stack.Redis, cfg.Env, version),
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
