package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var errorCodes = []struct {
	err  error
	code string
}{
	{booking.ErrSlotNotFound, "slot_not_found"},
	{booking.ErrAppointmentNotFound, "appointment_not_found"},
	{booking.ErrNoBookedAppointment, "no_booked_appointment"},
	{booking.ErrDuplicateBooking, "duplicate_booking"},
	{booking.ErrSlotFull, "slot_full"},
	{booking.ErrNotCancellable, "not_cancellable"},
	{booking.ErrSlotExists, "slot_exists"},
	{booking.ErrSlotSuspended, "slot_suspended"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// writeBookingError maps a booking error to a response by its kind.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)

	switch booking.Kind(err) {
	case booking.ErrInvalidRequest:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case booking.ErrNotFound:
		writeError(w, http.StatusNotFound, code, err.Error())
	case booking.ErrConflict:
		writeError(w, http.StatusConflict, code, err.Error())
	case booking.ErrUnavailable:
		writeError(w, http.StatusLocked, code, err.Error())
	case booking.ErrTransient:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "try_again", "the booking could not be processed right now, please retry shortly")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled booking error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
