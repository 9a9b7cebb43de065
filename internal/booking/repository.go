package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository persists appointment records. Implementations must
// enforce at most one BOOKED record per (patient, doctor, date) and report a
// violation from Insert as ErrDuplicateBooking.
type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// FindBooked returns ErrAppointmentNotFound when the patient holds no
	// BOOKED record with the doctor on date.
	FindBooked(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (*Appointment, error)

	Insert(ctx context.Context, a *Appointment) error
	// UpdateStatus moves id from one status to another. It returns
	// ErrAppointmentNotFound when no record with id is in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error)

	ListBooked(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByStatus(ctx context.Context, status AppointmentStatus, limit int) ([]Appointment, error)
	// ListOverdue returns BOOKED records dated strictly before day.
	ListOverdue(ctx context.Context, day time.Time, limit int) ([]Appointment, error)

	MaxQueueNumber(ctx context.Context) (int64, error)
	InsertEvent(ctx context.Context, ev Event) error
}
