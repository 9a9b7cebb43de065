package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/db"
	redisclient "github.com/hackgods/clinic-slot-queue/internal/redis"
)

const DefaultEmergencyPriority = 100

type Deps struct {
	Ledger   SlotLedger
	Repo     AppointmentRepository
	Sequence QueueNumbers
	// Locker serialises bookings per (patient, doctor, date). Defaults to
	// an in-process LocalLocker.
	Locker Locker
	// Tx makes each operation one unit of work. Defaults to JournalRunner.
	Tx     TxRunner
	Logger zerolog.Logger
}

type Options struct {
	EmergencyPriority int
	// Location decides which calendar day is "today" for expiry.
	Location *time.Location
	Now      func() time.Time
}

// Registry owns appointment records and their state transitions. Capacity
// is only ever touched through the SlotLedger.
type Registry struct {
	ledger   SlotLedger
	repo     AppointmentRepository
	seq      QueueNumbers
	locker   Locker
	tx       TxRunner
	log      zerolog.Logger
	priority int
	loc      *time.Location
	now      func() time.Time
}

func NewRegistry(d Deps, opts Options) *Registry {
	r := &Registry{
		ledger:   d.Ledger,
		repo:     d.Repo,
		seq:      d.Sequence,
		locker:   d.Locker,
		tx:       d.Tx,
		log:      d.Logger.With().Str("component", "registry").Logger(),
		priority: opts.EmergencyPriority,
		loc:      opts.Location,
		now:      opts.Now,
	}
	if r.locker == nil {
		r.locker = NewLocalLocker()
	}
	if r.tx == nil {
		r.tx = JournalRunner{}
	}
	if r.priority <= 0 {
		r.priority = DefaultEmergencyPriority
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// PriorityFor derives priority from class; callers cannot set it.
func (r *Registry) PriorityFor(class Class) int {
	if class == ClassEmergency {
		return r.priority
	}
	return 0
}

// Today is the current calendar date in the clinic's timezone.
func (r *Registry) Today() time.Time {
	return DateOf(r.now().In(r.loc))
}

// CreateAppointment books a slot for a patient. The duplicate check, the
// slot reservation and the insert form one unit of work: if the slot cannot
// be reserved no record is written and no queue number is drawn.
func (r *Registry) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.SlotKey()

	var created *Appointment

	err := r.locker.WithLock(ctx, bookingLockKey(req), func(lockCtx context.Context) error {
		return r.tx.InTx(lockCtx, func(ctx context.Context) error {
			created = nil

			existing, err := r.repo.FindBooked(ctx, req.PatientID, req.DoctorID, key.Date)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check existing booking: %w", err)
			}
			if existing != nil {
				return ErrDuplicateBooking
			}

			if _, err := r.ledger.Reserve(ctx, key, req.Class); err != nil {
				return err
			}

			number, err := r.seq.Next(ctx)
			if err != nil {
				return fmt.Errorf("allocate queue number: %w", err)
			}

			now := r.now().UTC()
			appt := &Appointment{
				ID:           uuid.New(),
				PatientID:    req.PatientID,
				DoctorID:     req.DoctorID,
				DepartmentID: req.DepartmentID,
				Date:         key.Date,
				Window:       key.Window,
				StartsAt:     key.Window.StartOn(key.Date),
				Class:        req.Class,
				Priority:     r.PriorityFor(req.Class),
				Status:       StatusBooked,
				QueueNumber:  number,
				Symptoms:     req.Symptoms,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := r.repo.Insert(ctx, appt); err != nil {
				return err
			}

			if err := r.recordEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
				"slot":         key.String(),
				"class":        appt.Class,
				"queue_number": appt.QueueNumber,
			}); err != nil {
				return err
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, r.translate(err)
	}

	r.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot", key.String()).
		Str("class", string(created.Class)).
		Int64("queue_number", created.QueueNumber).
		Msg("appointment booked")

	return created, nil
}

// Cancel moves a BOOKED appointment to CANCELLED and releases its slot in
// the same unit of work.
func (r *Registry) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment

	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		cancelled = nil

		appt, err := r.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !appt.CanCancel() {
			return ErrNotCancellable
		}

		updated, err := r.repo.UpdateStatus(ctx, id, StatusBooked, StatusCancelled, r.now().UTC())
		if errors.Is(err, ErrAppointmentNotFound) {
			// lost a race with complete/expire/another cancel
			return ErrNotCancellable
		}
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if _, err := r.ledger.Release(ctx, appt.SlotKey()); err != nil {
			return fmt.Errorf("release slot %s: %w", appt.SlotKey(), err)
		}

		if err := r.recordEvent(ctx, id, EventAppointmentCancelled, map[string]any{
			"slot": appt.SlotKey().String(),
		}); err != nil {
			return err
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, r.translate(err)
	}

	r.log.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return cancelled, nil
}

// Complete marks a BOOKED appointment as COMPLETED. The slot stays consumed.
// Anything other than a BOOKED record is reported as not found.
func (r *Registry) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var completed *Appointment

	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		completed = nil

		updated, err := r.repo.UpdateStatus(ctx, id, StatusBooked, StatusCompleted, r.now().UTC())
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := r.repo.Get(ctx, id); getErr != nil {
				return getErr
			}
			return ErrNoBookedAppointment
		}
		if err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}

		if err := r.recordEvent(ctx, id, EventAppointmentCompleted, map[string]any{}); err != nil {
			return err
		}

		completed = updated
		return nil
	})
	if err != nil {
		return nil, r.translate(err)
	}

	return completed, nil
}

// Expire marks a past-date BOOKED appointment EXPIRED and releases its slot.
// It reports whether this call performed the transition; records that are
// not BOOKED or not yet past are left alone, so repeated calls are harmless.
func (r *Registry) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	today := r.Today()
	expired := false

	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		expired = false

		appt, err := r.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status != StatusBooked || !appt.Date.Before(today) {
			return nil
		}

		_, err = r.repo.UpdateStatus(ctx, id, StatusBooked, StatusExpired, r.now().UTC())
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("expire appointment: %w", err)
		}

		if _, err := r.ledger.Release(ctx, appt.SlotKey()); err != nil {
			return fmt.Errorf("release slot %s: %w", appt.SlotKey(), err)
		}

		if err := r.recordEvent(ctx, id, EventAppointmentExpired, map[string]any{
			"slot":   appt.SlotKey().String(),
			"reason": "past_date",
		}); err != nil {
			return err
		}

		expired = true
		return nil
	})
	if err != nil {
		return false, r.translate(err)
	}

	return expired, nil
}

// ExpireOverdue runs Expire over up to batch past-date BOOKED records. It is
// meant to be driven by the expiry worker.
func (r *Registry) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	candidates, err := r.repo.ListOverdue(ctx, r.Today(), batch)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	n := 0
	for _, appt := range candidates {
		ok, err := r.Expire(ctx, appt.ID)
		if err != nil {
			r.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment")
			continue
		}
		if ok {
			n++
		}
	}

	return n, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.repo.Get(ctx, id)
}

func (r *Registry) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.repo.ListByPatient(ctx, patientID)
}

func (r *Registry) ListByStatus(ctx context.Context, status AppointmentStatus, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return r.repo.ListByStatus(ctx, status, limit)
}

func (r *Registry) recordEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := Event{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     r.now().UTC(),
	}

	if err := r.repo.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

// translate folds infrastructure contention into ErrTransient.
func (r *Registry) translate(err error) error {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return fmt.Errorf("%w: booking is being processed concurrently", ErrTransient)
	case errors.Is(err, db.ErrRetriesExhausted):
		r.log.Warn().Err(err).Msg("unit of work gave up after serialization retries")
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

func bookingLockKey(req BookingRequest) string {
	return "booking:" + req.PatientID.String() + ":" + req.DoctorID.String() + ":" + FormatDate(DateOf(req.Date))
}
