package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/clinic-slot-queue/internal/redis"
)

func TestEmergencyReserveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 3, 1)

	a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)
	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)

	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.ErrorIs(t, err, ErrSlotFull)
	assert.Equal(t, 2, f.slot(t, key).UsedCount)

	d, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassEmergency))
	require.NoError(t, err)
	assert.Equal(t, DefaultEmergencyPriority, d.Priority)
	assert.Equal(t, SlotFull, f.slot(t, key).Status())

	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassEmergency))
	require.ErrorIs(t, err, ErrSlotFull)

	_, err = f.reg.Cancel(ctx, a.ID)
	require.NoError(t, err)
	s := f.slot(t, key)
	assert.Equal(t, 2, s.UsedCount)
	assert.Equal(t, SlotOpen, s.Status())

	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	assert.ErrorIs(t, err, ErrSlotFull, "freed unit is the reserve, normal bookings stay refused")
	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassEmergency))
	assert.NoError(t, err)
}

func TestCreateAppointmentFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 3, 1)

	req := request(testDoctor, testDate.Add(15*time.Hour), testWindow, ClassNormal)
	req.Symptoms = "cough"

	a, err := f.reg.CreateAppointment(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusBooked, a.Status)
	assert.Equal(t, 0, a.Priority)
	assert.Equal(t, int64(1001), a.QueueNumber)
	assert.True(t, a.Date.Equal(testDate))
	assert.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), a.StartsAt)
	assert.Equal(t, "cough", a.Symptoms)
	assert.Equal(t, testNow, a.CreatedAt)

	stored, err := f.reg.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *stored)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
	assert.Equal(t, a.ID, *events[0].AppointmentID)
	assert.JSONEq(t, `{"slot":"`+key.String()+`","class":"NORMAL","queue_number":1001}`, string(events[0].Payload))
}

func TestCreateAppointmentRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 3, 1)

	_, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, "10:00-10:30", ClassNormal))
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.Equal(t, ErrNotFound, Kind(err))

	bad := request(testDoctor, testDate, testWindow, ClassNormal)
	bad.PatientID = uuid.Nil
	_, err = f.reg.CreateAppointment(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.ledger.SetSuspended(ctx, key, true)
	require.NoError(t, err)
	_, err = f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassEmergency))
	assert.ErrorIs(t, err, ErrSlotSuspended)
	assert.Equal(t, ErrUnavailable, Kind(err))

	assert.Equal(t, int64(1000), f.seq.Last(), "refused bookings draw no queue number")
	assert.Empty(t, f.repo.Events())
	assert.Equal(t, 0, f.slot(t, key).UsedCount)
}

func TestWindowSpellingsShareOneSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	loose := SlotKey{DoctorID: testDoctor, Date: testDate, Window: "9:00-9:30"}
	rec, err := f.ledger.Provision(ctx, SlotSpec{Key: loose, TotalCapacity: 3})
	require.NoError(t, err)
	assert.Equal(t, testWindow, rec.Key.Window)

	_, err = f.ledger.Provision(ctx, SlotSpec{Key: NewSlotKey(testDoctor, testDate, testWindow), TotalCapacity: 3})
	assert.ErrorIs(t, err, ErrSlotExists)

	for _, w := range []TimeWindow{"09:00-09:30", " 9:00-9:30", "9:00-9:30"} {
		appt, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, w, ClassNormal))
		require.NoError(t, err, string(w))
		assert.Equal(t, testWindow, appt.Window)
	}

	assert.Equal(t, 3, f.slot(t, loose).UsedCount)

	queue, err := f.view.QueueFor(ctx, testDoctor, testDate)
	require.NoError(t, err)
	assert.Len(t, queue, 3)
}

func TestDuplicateBookingSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provision(t, NewSlotKey(testDoctor, testDate, testWindow), 3, 0)
	f.provision(t, NewSlotKey(testDoctor, testDate, "10:00-10:30"), 3, 0)

	req := request(testDoctor, testDate, testWindow, ClassNormal)
	first, err := f.reg.CreateAppointment(ctx, req)
	require.NoError(t, err)

	req.Window = "10:00-10:30"
	_, err = f.reg.CreateAppointment(ctx, req)
	require.ErrorIs(t, err, ErrDuplicateBooking)
	assert.Equal(t, ErrConflict, Kind(err))
	assert.Equal(t, 0, f.slot(t, NewSlotKey(testDoctor, testDate, "10:00-10:30")).UsedCount)

	// a cancelled booking no longer blocks the patient
	_, err = f.reg.Cancel(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.reg.CreateAppointment(ctx, req)
	assert.NoError(t, err)
}

func TestConcurrentBookingsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 10, 2)

	run := func(n int, class Class) (ok, full int) {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, class))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrSlotFull):
					full++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		return ok, full
	}

	ok, full := run(50, ClassNormal)
	assert.Equal(t, 8, ok)
	assert.Equal(t, 42, full)

	ok, full = run(20, ClassEmergency)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 18, full)

	s := f.slot(t, key)
	assert.Equal(t, 10, s.UsedCount)
	assert.Equal(t, SlotFull, s.Status())

	queue, err := f.view.QueueFor(ctx, testDoctor, testDate)
	require.NoError(t, err)
	assert.Len(t, queue, 10)
}

func TestConcurrentDuplicateBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 50, 0)

	req := request(testDoctor, testDate, testWindow, ClassNormal)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reg.CreateAppointment(ctx, req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateBooking)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.slot(t, key).UsedCount)
}

func TestQueueNumbersDistinctAndIncreasing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provision(t, NewSlotKey(testDoctor, testDate, testWindow), 100, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool)
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[a.QueueNumber], "queue number %d issued twice", a.QueueNumber)
			seen[a.QueueNumber] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 40)

	prev := f.seq.Last()
	for range 3 {
		a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
		require.NoError(t, err)
		assert.Greater(t, a.QueueNumber, prev)
		prev = a.QueueNumber
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 1, 0)

	a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)
	assert.Equal(t, SlotFull, f.slot(t, key).Status())

	*f.clock = testNow.Add(time.Hour)
	cancelled, err := f.reg.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, a.QueueNumber, cancelled.QueueNumber)
	assert.Equal(t, testNow.Add(time.Hour), cancelled.UpdatedAt)
	assert.Equal(t, SlotOpen, f.slot(t, key).Status())

	_, err = f.reg.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, ErrConflict, Kind(err))
	assert.Equal(t, 0, f.slot(t, key).UsedCount, "second cancel must not release again")

	_, err = f.reg.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	types := []string{}
	for _, ev := range f.repo.Events() {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{EventAppointmentBooked, EventAppointmentCancelled}, types)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 2, 0)

	a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)

	done, err := f.reg.Complete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 1, f.slot(t, key).UsedCount, "completion keeps the unit consumed")

	_, err = f.reg.Complete(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNoBookedAppointment)

	_, err = f.reg.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)

	b, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)
	_, err = f.reg.Cancel(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.reg.Complete(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNoBookedAppointment)
	assert.Equal(t, ErrNotFound, Kind(err))

	_, err = f.reg.Complete(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	yesterday := testNow.AddDate(0, 0, -1)
	past := NewSlotKey(testDoctor, yesterday, testWindow)
	future := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, past, 2, 0)
	f.provision(t, future, 2, 0)

	old, err := f.reg.CreateAppointment(ctx, request(testDoctor, yesterday, testWindow, ClassNormal))
	require.NoError(t, err)
	upcoming, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)

	ok, err := f.reg.Expire(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.slot(t, past).UsedCount)

	got, err := f.reg.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	ok, err = f.reg.Expire(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, ok, "expire is idempotent")
	assert.Equal(t, 0, f.slot(t, past).UsedCount)

	ok, err = f.reg.Expire(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.slot(t, future).UsedCount)

	_, err = f.reg.Expire(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for days := 1; days <= 3; days++ {
		d := testNow.AddDate(0, 0, -days)
		f.provision(t, NewSlotKey(testDoctor, d, testWindow), 5, 0)
		for range 2 {
			_, err := f.reg.CreateAppointment(ctx, request(testDoctor, d, testWindow, ClassNormal))
			require.NoError(t, err)
		}
	}
	f.provision(t, NewSlotKey(testDoctor, testNow, testWindow), 5, 0)
	_, err := f.reg.CreateAppointment(ctx, request(testDoctor, testNow, testWindow, ClassNormal))
	require.NoError(t, err)

	n, err := f.reg.ExpireOverdue(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = f.reg.ExpireOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.reg.ExpireOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	booked, err := f.reg.ListByStatus(ctx, StatusBooked, 0)
	require.NoError(t, err)
	assert.Len(t, booked, 1, "today's booking is not overdue")
}

func TestTodayUsesClinicTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	reg := NewRegistry(Deps{Logger: zerolog.Nop()}, Options{Location: loc, Now: func() time.Time { return now }})
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), reg.Today())
}

func TestListByPatientNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := uuid.New()
	f.provision(t, NewSlotKey(testDoctor, testDate, testWindow), 5, 0)
	f.provision(t, NewSlotKey(other, testDate, testWindow), 5, 0)

	patient := uuid.New()
	req := request(testDoctor, testDate, testWindow, ClassNormal)
	req.PatientID = patient
	first, err := f.reg.CreateAppointment(ctx, req)
	require.NoError(t, err)

	*f.clock = testNow.Add(time.Minute)
	req.DoctorID = other
	second, err := f.reg.CreateAppointment(ctx, req)
	require.NoError(t, err)

	list, err := f.reg.ListByPatient(ctx, patient)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

type failingSequence struct{}

func (failingSequence) Next(context.Context) (int64, error) {
	return 0, errors.New("sequence offline")
}

func TestFailedBookingRollsBackReservation(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	repo := NewMemoryRepository()
	key := NewSlotKey(testDoctor, testDate, testWindow)
	_, err := ledger.Provision(ctx, SlotSpec{Key: key, TotalCapacity: 1})
	require.NoError(t, err)

	reg := NewRegistry(Deps{Ledger: ledger, Repo: repo, Sequence: failingSequence{}, Logger: zerolog.Nop()}, Options{})

	req := request(testDoctor, testDate, testWindow, ClassNormal)
	_, err = reg.CreateAppointment(ctx, req)
	require.Error(t, err)

	s, err := ledger.Slot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.UsedCount)

	_, err = repo.FindBooked(ctx, req.PatientID, req.DoctorID, req.Date)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

type eventFailingRepo struct {
	*MemoryRepository
}

func (eventFailingRepo) InsertEvent(context.Context, Event) error {
	return errors.New("audit log unavailable")
}

func TestFailedCancelLeavesBookingIntact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 2, 0)

	a, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)

	broken := NewRegistry(Deps{
		Ledger:   f.ledger,
		Repo:     eventFailingRepo{f.repo},
		Sequence: f.seq,
		Logger:   zerolog.Nop(),
	}, Options{})

	_, err = broken.Cancel(ctx, a.ID)
	require.Error(t, err)

	got, err := f.reg.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, got.Status)
	assert.Equal(t, 1, f.slot(t, key).UsedCount)

	_, err = f.repo.FindBooked(ctx, a.PatientID, a.DoctorID, a.Date)
	assert.NoError(t, err, "booked index restored")
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestLockContentionIsTransient(t *testing.T) {
	f := newFixture(t)
	f.provision(t, NewSlotKey(testDoctor, testDate, testWindow), 2, 0)

	reg := NewRegistry(Deps{
		Ledger:   f.ledger,
		Repo:     f.repo,
		Sequence: f.seq,
		Locker:   busyLocker{},
		Logger:   zerolog.Nop(),
	}, Options{})

	_, err := reg.CreateAppointment(context.Background(), request(testDoctor, testDate, testWindow, ClassNormal))
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, ErrTransient, Kind(err))
}

func TestQueueNumberCollisionIsTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := NewSlotKey(testDoctor, testDate, testWindow)
	f.provision(t, key, 3, 0)

	// a second process sharing the store but running its own local sequence
	other := NewRegistry(Deps{
		Ledger:   f.ledger,
		Repo:     f.repo,
		Sequence: NewAtomicSequence(1000),
		Logger:   zerolog.Nop(),
	}, Options{Now: func() time.Time { return testNow }})

	first, err := f.reg.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.NoError(t, err)
	assert.Equal(t, int64(1001), first.QueueNumber)

	_, err = other.CreateAppointment(ctx, request(testDoctor, testDate, testWindow, ClassNormal))
	require.ErrorIs(t, err, ErrQueueNumberTaken)
	assert.Equal(t, ErrTransient, Kind(err))
	assert.Equal(t, 1, f.slot(t, key).UsedCount, "reservation rolled back")

	booked, err := f.reg.ListByStatus(ctx, StatusBooked, 0)
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestPriorityFor(t *testing.T) {
	reg := NewRegistry(Deps{Logger: zerolog.Nop()}, Options{EmergencyPriority: 7})
	assert.Equal(t, 7, reg.PriorityFor(ClassEmergency))
	assert.Equal(t, 0, reg.PriorityFor(ClassNormal))
}
