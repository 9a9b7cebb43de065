package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/db"
	"github.com/hackgods/clinic-slot-queue/internal/directory"
	"github.com/hackgods/clinic-slot-queue/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "seed")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")

	opts, err := parseOptions(os.Args[1:], time.Now().In(cfg.Location()))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid flags")
	}

	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PgMaxConns)})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	ledger := booking.NewPgLedger(pool, db.NewTxRunner(pool, cfg.TxMaxRetries))
	sum, err := app.Seed(ctx, directory.NewPostgres(pool), ledger, opts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	logger.Info().
		Int("departments", sum.Departments).
		Int("doctors", sum.Doctors).
		Int("patients", sum.Patients).
		Int("slots", sum.Slots).
		Msg("seed complete")
}

func parseOptions(args []string, today time.Time) (app.SeedOptions, error) {
	opts := app.DefaultSeedOptions(today)

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.IntVar(&opts.Departments, "departments", opts.Departments, "number of departments")
	fs.IntVar(&opts.DoctorsPerDept, "doctors", opts.DoctorsPerDept, "doctors per department")
	fs.IntVar(&opts.Patients, "patients", opts.Patients, "number of patients")
	fs.IntVar(&opts.Days, "days", opts.Days, "days of slots to provision from today")
	fs.IntVar(&opts.Capacity, "capacity", opts.Capacity, "total capacity per slot")
	fs.IntVar(&opts.EmergencyReserve, "reserve", opts.EmergencyReserve, "emergency reserve per slot")
	fs.Uint64Var(&opts.Seed, "seed", opts.Seed, "fake data seed, 0 for random")
	if err := fs.Parse(args); err != nil {
		return app.SeedOptions{}, err
	}
	return opts, nil
}
