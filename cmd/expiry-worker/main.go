package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "expiry-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "expiry-worker")
	logger.Info().
		Dur("interval", cfg.WorkerInterval).
		Int("batch", cfg.SweepBatchSize).
		Str("timezone", cfg.ClinicTimezone).
		Msg("expiry worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build booking stack")
	}
	defer stack.Close()

	// Run once at startup
	runOnce(rootCtx, stack.Registry, cfg.SweepBatchSize, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, stack.Registry, cfg.SweepBatchSize, logger)
		}
	}
}

// runOnce drains overdue bookings batch by batch until a batch comes back
// short, so a backlog clears in one tick.
func runOnce(ctx context.Context, reg *booking.Registry, batch int, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	total := 0
	for {
		n, err := reg.ExpireOverdue(runCtx, batch)
		if err != nil {
			logger.Error().Err(err).Int("expired", total).Msg("expiry run error")
			return
		}
		total += n
		if n < batch || runCtx.Err() != nil {
			break
		}
	}

	logger.Info().
		Int("expired", total).
		Str("today", booking.FormatDate(reg.Today())).
		Dur("took", time.Since(start)).
		Msg("expiry run complete")
}
