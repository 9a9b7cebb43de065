package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-slot-queue/internal/db"
)

const (
	appointmentColumns = `id, patient_id, doctor_id, department_id, appointment_date, time_window, starts_at,
		class, priority, status, queue_number, COALESCE(symptoms, ''), created_at, updated_at`

	oneBookedPerDayIndex = "appointments_one_booked_per_day"
	queueNumberKey       = "appointments_queue_number_key"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var window, class, status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.DepartmentID,
		&a.Date,
		&window,
		&a.StartsAt,
		&class,
		&a.Priority,
		&status,
		&a.QueueNumber,
		&a.Symptoms,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(a.Date)
	a.StartsAt = a.StartsAt.UTC()
	a.Window = TimeWindow(window)
	a.Class = Class(class)
	a.Status = AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindBooked(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND doctor_id = $2 AND appointment_date = $3 AND status = 'BOOKED'
		LIMIT 1
	`, patientID, doctorID, DateOf(date))
	return scanAppointment(row)
}

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, department_id, appointment_date, time_window, starts_at,
		                          class, priority, status, queue_number, symptoms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14)
	`, a.ID, a.PatientID, a.DoctorID, a.DepartmentID, DateOf(a.Date), string(a.Window), a.StartsAt,
		string(a.Class), a.Priority, string(a.Status), a.QueueNumber, a.Symptoms, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, oneBookedPerDayIndex) {
			return ErrDuplicateBooking
		}
		if db.IsUniqueViolation(err, queueNumberKey) {
			return ErrQueueNumberTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from), at)
	return scanAppointment(row)
}

func (r *PgRepository) ListBooked(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	return collectAppointments(db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status = 'BOOKED'
		ORDER BY priority DESC, starts_at ASC, queue_number ASC
	`, doctorID, DateOf(date)))
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return collectAppointments(db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC, queue_number DESC
	`, patientID))
}

func (r *PgRepository) ListByStatus(ctx context.Context, status AppointmentStatus, limit int) ([]Appointment, error) {
	return collectAppointments(db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY created_at DESC, queue_number DESC
		LIMIT $2
	`, string(status), limit))
}

func (r *PgRepository) ListOverdue(ctx context.Context, day time.Time, limit int) ([]Appointment, error) {
	return collectAppointments(db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'BOOKED'
		  AND appointment_date < $1
		ORDER BY appointment_date, queue_number
		LIMIT $2
	`, DateOf(day), limit))
}

func (r *PgRepository) MaxQueueNumber(ctx context.Context) (int64, error) {
	var n int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COALESCE(MAX(queue_number), 0) FROM appointments`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("max queue number: %w", err)
	}
	return n, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
