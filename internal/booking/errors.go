package booking

import "errors"

// Error kinds. Every booking error unwraps to exactly one of these.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrTransient   = errors.New("transient failure, retry later")

	ErrInvalidRequest = errors.New("invalid request")
)

var (
	ErrSlotNotFound        = kindError(ErrNotFound, "slot not found")
	ErrAppointmentNotFound = kindError(ErrNotFound, "appointment not found")
	ErrNoBookedAppointment = kindError(ErrNotFound, "no booked appointment with this id")

	ErrDuplicateBooking = kindError(ErrConflict, "patient already has a booking with this doctor on this date")
	ErrSlotFull         = kindError(ErrConflict, "slot is full")
	ErrNotCancellable   = kindError(ErrConflict, "appointment cannot be cancelled")
	ErrSlotExists       = kindError(ErrConflict, "slot already provisioned")

	ErrSlotSuspended = kindError(ErrUnavailable, "slot is suspended")

	// ErrQueueNumberTaken means another process issued the same number,
	// usually two instances each running a local sequence.
	ErrQueueNumberTaken = kindError(ErrTransient, "queue number already issued")
)

type bookingError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &bookingError{kind: kind, msg: msg}
}

func (e *bookingError) Error() string { return e.msg }

func (e *bookingError) Unwrap() error { return e.kind }

// Kind returns the error kind of err, or nil for errors outside the taxonomy.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrUnavailable, ErrTransient, ErrInvalidRequest} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
