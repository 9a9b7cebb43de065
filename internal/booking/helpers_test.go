package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	testDate = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
)

var testDoctor = uuid.MustParse("7d3c6f0e-2a51-4f0e-9a6b-4c1f2b8e9d10")

const testWindow TimeWindow = "09:00-09:30"

type fixture struct {
	reg    *Registry
	ledger *MemoryLedger
	repo   *MemoryRepository
	seq    *AtomicSequence
	view   *QueueView
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testNow
	f := &fixture{
		ledger: NewMemoryLedger(),
		repo:   NewMemoryRepository(),
		seq:    NewAtomicSequence(1000),
		clock:  &clock,
	}
	f.reg = NewRegistry(Deps{
		Ledger:   f.ledger,
		Repo:     f.repo,
		Sequence: f.seq,
		Logger:   zerolog.Nop(),
	}, Options{
		Now: func() time.Time { return *f.clock },
	})
	f.view = NewQueueView(f.repo)
	return f
}

func (f *fixture) provision(t *testing.T, key SlotKey, total, reserve int) {
	t.Helper()
	_, err := f.ledger.Provision(context.Background(), SlotSpec{Key: key, TotalCapacity: total, EmergencyReserve: reserve})
	require.NoError(t, err)
}

func (f *fixture) slot(t *testing.T, key SlotKey) SlotRecord {
	t.Helper()
	s, err := f.ledger.Slot(context.Background(), key)
	require.NoError(t, err)
	return s
}

func request(doctorID uuid.UUID, date time.Time, window TimeWindow, class Class) BookingRequest {
	return BookingRequest{
		PatientID:    uuid.New(),
		DoctorID:     doctorID,
		DepartmentID: uuid.New(),
		Date:         date,
		Window:       window,
		Class:        class,
	}
}
