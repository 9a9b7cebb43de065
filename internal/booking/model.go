package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Class string

const (
	ClassNormal    Class = "NORMAL"
	ClassEmergency Class = "EMERGENCY"
)

func ParseClass(s string) (Class, error) {
	switch Class(strings.ToUpper(strings.TrimSpace(s))) {
	case ClassNormal, "":
		return ClassNormal, nil
	case ClassEmergency:
		return ClassEmergency, nil
	}
	return "", fmt.Errorf("%w: unknown appointment class %q", ErrInvalidRequest, s)
}

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusExpired   AppointmentStatus = "EXPIRED"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusBooked, StatusCompleted, StatusCancelled, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown appointment status %q", ErrInvalidRequest, s)
}

type SlotStatus string

const (
	SlotOpen      SlotStatus = "OPEN"
	SlotFull      SlotStatus = "FULL"
	SlotSuspended SlotStatus = "SUSPENDED"
)

const dateLayout = "2006-01-02"

// DateOf returns midnight UTC of t's calendar date. All dates in this
// package are normalised this way so they compare and key consistently.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return DateOf(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// TimeWindow is a clinic time range formatted "HH:MM-HH:MM".
type TimeWindow string

func ParseTimeWindow(s string) (TimeWindow, error) {
	s = strings.TrimSpace(s)
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return "", fmt.Errorf("%w: time window %q must look like 09:00-09:30", ErrInvalidRequest, s)
	}
	st, err := time.Parse("15:04", start)
	if err != nil {
		return "", fmt.Errorf("%w: bad window start %q", ErrInvalidRequest, start)
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return "", fmt.Errorf("%w: bad window end %q", ErrInvalidRequest, end)
	}
	if !et.After(st) {
		return "", fmt.Errorf("%w: window %q ends before it starts", ErrInvalidRequest, s)
	}
	return TimeWindow(st.Format("15:04") + "-" + et.Format("15:04")), nil
}

// Canonical returns the zero-padded spelling of w, so "9:00-9:30" and
// "09:00-09:30" name the same slot. Invalid windows come back unchanged.
func (w TimeWindow) Canonical() TimeWindow {
	c, err := ParseTimeWindow(string(w))
	if err != nil {
		return w
	}
	return c
}

// WindowStarting builds the window beginning at hour:minute and lasting d.
func WindowStarting(hour, minute int, d time.Duration) TimeWindow {
	start := time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC)
	end := start.Add(d)
	return TimeWindow(start.Format("15:04") + "-" + end.Format("15:04"))
}

// StartOn returns the window start on the given date, as clinic wall time
// expressed in UTC.
func (w TimeWindow) StartOn(date time.Time) time.Time {
	start, _, _ := strings.Cut(string(w), "-")
	t, err := time.Parse("15:04", start)
	if err != nil {
		return DateOf(date)
	}
	d := DateOf(date)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// SlotKey identifies one capacity record.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     time.Time
	Window   TimeWindow
}

// NewSlotKey normalises the date to midnight UTC and the window to its
// canonical spelling.
func NewSlotKey(doctorID uuid.UUID, date time.Time, window TimeWindow) SlotKey {
	return SlotKey{DoctorID: doctorID, Date: DateOf(date), Window: window.Canonical()}
}

func (k SlotKey) normalized() SlotKey {
	return NewSlotKey(k.DoctorID, k.Date, k.Window)
}

func (k SlotKey) String() string {
	return k.DoctorID.String() + "/" + FormatDate(k.Date) + "/" + string(k.Window)
}

// SlotRecord is the capacity bucket for one doctor, date and time window.
// Only the suspension flag is stored; OPEN and FULL are derived.
type SlotRecord struct {
	Key              SlotKey
	TotalCapacity    int
	UsedCount        int
	EmergencyReserve int
	Suspended        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s SlotRecord) Status() SlotStatus {
	switch {
	case s.Suspended:
		return SlotSuspended
	case s.UsedCount >= s.TotalCapacity:
		return SlotFull
	default:
		return SlotOpen
	}
}

// NormalAvailable is the capacity left for normal bookings once the
// emergency reserve is held back.
func (s SlotRecord) NormalAvailable() int {
	return max(0, s.TotalCapacity-s.UsedCount-s.EmergencyReserve)
}

// EmergencyAvailable is all remaining capacity, reserve included.
func (s SlotRecord) EmergencyAvailable() int {
	return max(0, s.TotalCapacity-s.UsedCount)
}

// SlotSpec describes a slot to provision.
type SlotSpec struct {
	Key              SlotKey
	TotalCapacity    int
	EmergencyReserve int
}

func (s SlotSpec) Validate() error {
	if s.Key.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidRequest)
	}
	if s.Key.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if _, err := ParseTimeWindow(string(s.Key.Window)); err != nil {
		return err
	}
	if s.TotalCapacity < 1 {
		return fmt.Errorf("%w: total capacity must be at least 1", ErrInvalidRequest)
	}
	if s.EmergencyReserve < 0 || s.EmergencyReserve > s.TotalCapacity {
		return fmt.Errorf("%w: emergency reserve must be between 0 and total capacity", ErrInvalidRequest)
	}
	return nil
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time
	Window       TimeWindow
	StartsAt     time.Time
	Class        Class
	Priority     int
	Status       AppointmentStatus
	QueueNumber  int64
	Symptoms     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) SlotKey() SlotKey {
	return NewSlotKey(a.DoctorID, a.Date, a.Window)
}

func (a Appointment) CanCancel() bool {
	return a.Status == StatusBooked
}

// BookingRequest carries everything the caller supplies for a booking.
// Priority is deliberately absent; it is derived from Class.
type BookingRequest struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time
	Window       TimeWindow
	Class        Class
	Symptoms     string
}

func (r BookingRequest) Validate() error {
	switch {
	case r.PatientID == uuid.Nil:
		return fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	case r.DoctorID == uuid.Nil:
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidRequest)
	case r.DepartmentID == uuid.Nil:
		return fmt.Errorf("%w: department_id is required", ErrInvalidRequest)
	case r.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	case r.Class != ClassNormal && r.Class != ClassEmergency:
		return fmt.Errorf("%w: unknown appointment class %q", ErrInvalidRequest, r.Class)
	}
	_, err := ParseTimeWindow(string(r.Window))
	return err
}

func (r BookingRequest) SlotKey() SlotKey {
	return NewSlotKey(r.DoctorID, r.Date, r.Window)
}

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

type Event struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
