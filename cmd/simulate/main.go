package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/logging"
)

type SimConfig struct {
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	CancelRatio    float64
	CompleteRatio  float64
	ReadRatio      float64
	EmergencyRatio float64
	PatientLimit   int
	Days           int
}

// DataPool holds the ids workers pick from.
type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Dates    []time.Time
	Windows  []booking.TimeWindow

	// Departments maps doctor id to department id.
	Departments map[uuid.UUID]uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	stack   *app.Stack
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "simulate")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid simulation config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("complete", cfg.CompleteRatio).
		Float64("read", cfg.ReadRatio).
		Str("store", baseCfg.StoreBackend).
		Msg("simulator starting")

	ctx := context.Background()
	stack, err := app.Build(ctx, baseCfg, logger.Level(zerolog.WarnLevel))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build booking stack")
	}
	defer stack.Close()

	today := stack.Registry.Today()
	if baseCfg.StoreBackend == config.BackendMemory {
		opts := app.DefaultSeedOptions(today)
		opts.Days = cfg.Days
		if _, err := app.Seed(ctx, stack.Directory, stack.Ledger, opts, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed in-memory store")
		}
	}

	dataPool, err := loadDataPool(ctx, stack, cfg, today)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		stack:  stack,
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()

	report, err := app.Audit(ctx, stack.Ledger, stack.Repo, dataPool.Doctors, dataPool.Dates, baseCfg.EmergencyPrio)
	if err != nil {
		logger.Fatal().Err(err).Msg("audit failed")
	}
	printAudit(report)
	if !report.OK() {
		stack.Close()
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 16),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.1),
		CompleteRatio:  getFloat("SIM_COMPLETE_RATIO", 0.1),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		EmergencyRatio: getFloat("SIM_EMERGENCY_RATIO", 0.2),
		PatientLimit:   getInt("SIM_PATIENT_LIMIT", 4000),
		Days:           getInt("SIM_DAYS", 3),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.CompleteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.CompleteRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, stack *app.Stack, cfg SimConfig, today time.Time) (*DataPool, error) {
	dataPool := &DataPool{Departments: make(map[uuid.UUID]uuid.UUID)}

	patients, err := stack.Directory.ListPatientIDs(ctx, cfg.PatientLimit)
	if err != nil {
		return nil, err
	}
	dataPool.Patients = patients

	doctors, err := stack.Directory.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range doctors {
		dataPool.Doctors = append(dataPool.Doctors, d.ID)
		dataPool.Departments[d.ID] = d.DepartmentID
	}

	for i := 0; i < cfg.Days; i++ {
		dataPool.Dates = append(dataPool.Dates, today.AddDate(0, 0, i))
	}

	if len(dataPool.Doctors) > 0 {
		slots, err := stack.Ledger.SlotsForDoctor(ctx, dataPool.Doctors[0], today)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			dataPool.Windows = append(dataPool.Windows, s.Key.Window)
		}
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Windows) == 0 {
		return nil, fmt.Errorf("no slots provisioned for today")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.CompleteRatio:
			s.doComplete(ctx, rng)
		default:
			s.doReadQueue(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	class := booking.ClassNormal
	if rng.Float64() < s.config.EmergencyRatio {
		class = booking.ClassEmergency
	}

	doctorID := s.pool.Doctors[rng.IntN(len(s.pool.Doctors))]
	req := booking.BookingRequest{
		PatientID:    s.pool.Patients[rng.IntN(len(s.pool.Patients))],
		DoctorID:     doctorID,
		DepartmentID: s.pool.Departments[doctorID],
		Date:         s.pool.Dates[rng.IntN(len(s.pool.Dates))],
		Window:       s.pool.Windows[rng.IntN(len(s.pool.Windows))],
		Class:        class,
	}

	start := time.Now()
	appt, err := s.stack.Registry.CreateAppointment(ctx, req)
	s.metrics.Booking.Record(time.Since(start), err)

	if err == nil {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	_, err := s.stack.Registry.Cancel(ctx, id)
	s.metrics.Cancel.Record(time.Since(start), err)
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	_, err := s.stack.Registry.Complete(ctx, id)
	s.metrics.Complete.Record(time.Since(start), err)
}

func (s *Simulator) doReadQueue(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.IntN(len(s.pool.Doctors))]
	date := s.pool.Dates[rng.IntN(len(s.pool.Dates))]

	start := time.Now()
	_, err := s.stack.Queue.QueueFor(ctx, doctorID, date)
	s.metrics.ReadQueue.Record(time.Since(start), err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Complete", &s.metrics.Complete)
	printOperationReport("Read queue", &s.metrics.ReadQueue)
}

func printAudit(r app.AuditReport) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("AUDIT: %d slots, %d appointments\n", r.Slots, r.Appointments)
	if r.OK() {
		fmt.Println("  all invariants hold")
		return
	}
	for _, v := range r.Violations {
		fmt.Println("  VIOLATION:", v)
	}
}

// Helper functions

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
