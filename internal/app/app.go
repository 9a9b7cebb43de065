// Package app assembles the booking stack from configuration so that every
// binary wires storage, locking and queue numbering the same way.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/db"
	"github.com/hackgods/clinic-slot-queue/internal/directory"
	redisclient "github.com/hackgods/clinic-slot-queue/internal/redis"
)

type Stack struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Ledger    booking.SlotLedger
	Repo      booking.AppointmentRepository
	Directory directory.Store
	Registry  *booking.Registry
	Queue     *booking.QueueView

	closers []func()
}

// Build connects the configured backends. Callers must Close the stack.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Stack, error) {
	s := &Stack{}

	var tx booking.TxRunner
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PgMaxConns)})
		cancel()
		if err != nil {
			return nil, err
		}
		s.Pool = pool
		s.closers = append(s.closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("connected to Postgres")

		runner := db.NewTxRunner(pool, cfg.TxMaxRetries)
		tx = runner
		s.Ledger = booking.NewPgLedger(pool, runner)
		s.Repo = booking.NewPgRepository(pool)
		s.Directory = directory.NewPostgres(pool)

		if cfg.QueueSequence == config.SequenceLocal {
			logger.Warn().Msg("local queue sequence on a shared database, run a single booking process or set QUEUE_SEQUENCE=redis")
		}
	default:
		tx = booking.JournalRunner{}
		s.Ledger = booking.NewMemoryLedger()
		s.Repo = booking.NewMemoryRepository()
		s.Directory = directory.NewMemory()
		logger.Warn().Msg("using in-memory store, state is lost on exit")
	}

	if cfg.UsesRedis() {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Redis = rdb
		s.closers = append(s.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		})
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	var locker booking.Locker
	if cfg.LockBackend == config.LockRedis {
		locker = redisclient.NewRedisLocker(s.Redis, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = booking.NewLocalLocker()
	}

	seq, err := buildSequence(ctx, cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Registry = booking.NewRegistry(booking.Deps{
		Ledger:   s.Ledger,
		Repo:     s.Repo,
		Sequence: seq,
		Locker:   locker,
		Tx:       tx,
		Logger:   logger,
	}, booking.Options{
		EmergencyPriority: cfg.EmergencyPrio,
		Location:          cfg.Location(),
	})
	s.Queue = booking.NewQueueView(s.Repo)

	return s, nil
}

func buildSequence(ctx context.Context, cfg config.Config, s *Stack) (booking.QueueNumbers, error) {
	start, err := booking.SequenceStart(ctx, s.Repo, cfg.QueueFloor)
	if err != nil {
		return nil, err
	}

	if cfg.QueueSequence == config.SequenceRedis {
		seq := redisclient.NewSequence(s.Redis, redisclient.DefaultSequenceKey)
		if _, err := seq.Seed(ctx, start); err != nil {
			return nil, err
		}
		return seq, nil
	}
	return booking.NewAtomicSequence(start), nil
}

// Close releases connections in reverse order of creation.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
