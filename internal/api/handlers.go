package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/directory"
)

// AppointmentService is the registry surface the handlers need.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, req booking.BookingRequest) (*booking.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Appointment, error)
	ListByStatus(ctx context.Context, status booking.AppointmentStatus, limit int) ([]booking.Appointment, error)
	Today() time.Time
}

type QueueReader interface {
	QueueFor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]booking.Appointment, error)
}

type SlotReader interface {
	SlotsForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]booking.SlotRecord, error)
}

func createAppointmentHandler(svc AppointmentService, dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		departmentID, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_department_id", "department_id must be a valid UUID")
			return
		}

		date, err := booking.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		window, err := booking.ParseTimeWindow(req.TimeWindow)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_window", err.Error())
			return
		}

		class, err := booking.ParseClass(req.Class)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_class", "class must be NORMAL or EMERGENCY")
			return
		}

		if !checkExists(w, r, dir.PatientExists, patientID, "patient_not_found", "patient does not exist") ||
			!checkExists(w, r, dir.DoctorExists, doctorID, "doctor_not_found", "doctor does not exist") ||
			!checkExists(w, r, dir.DepartmentExists, departmentID, "department_not_found", "department does not exist") {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), booking.BookingRequest{
			PatientID:    patientID,
			DoctorID:     doctorID,
			DepartmentID: departmentID,
			Date:         date,
			Window:       window,
			Class:        class,
			Symptoms:     req.Symptoms,
		})
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func checkExists(w http.ResponseWriter, r *http.Request, lookup func(context.Context, uuid.UUID) (bool, error), id uuid.UUID, code, details string) bool {
	ok, err := lookup(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("directory lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, code, details)
		return false
	}
	return true
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if raw := q.Get("patient_id"); raw != "" {
			patientID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}

			list, err := svc.ListByPatient(r.Context(), patientID)
			if err != nil {
				writeBookingError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toAppointmentList(list))
			return
		}

		if raw := q.Get("status"); raw != "" {
			status, err := booking.ParseStatus(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
				return
			}

			limit := 0
			if l := q.Get("limit"); l != "" {
				limit, err = strconv.Atoi(l)
				if err != nil || limit < 0 {
					writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
					return
				}
			}

			list, err := svc.ListByStatus(r.Context(), status, limit)
			if err != nil {
				writeBookingError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toAppointmentList(list))
			return
		}

		writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or status is required")
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func completeAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func doctorQueueHandler(svc AppointmentService, queue QueueReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, date, ok := doctorAndDate(w, r, svc)
		if !ok {
			return
		}

		list, err := queue.QueueFor(r.Context(), doctorID, date)
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		entries := make([]QueueEntry, 0, len(list))
		for i, a := range list {
			entries = append(entries, QueueEntry{Position: i + 1, AppointmentResponse: toAppointmentResponse(a)})
		}

		writeJSON(w, http.StatusOK, QueueResponse{
			DoctorID: doctorID,
			Date:     booking.FormatDate(date),
			Entries:  entries,
		})
	}
}

func doctorSlotsHandler(svc AppointmentService, slots SlotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, date, ok := doctorAndDate(w, r, svc)
		if !ok {
			return
		}

		var class booking.Class
		if raw := r.URL.Query().Get("class"); raw != "" {
			c, err := booking.ParseClass(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_class", "class must be NORMAL or EMERGENCY")
				return
			}
			class = c
		}

		list, err := slots.SlotsForDoctor(r.Context(), doctorID, date)
		if err != nil {
			writeBookingError(w, r, err)
			return
		}

		out := make([]SlotResponse, 0, len(list))
		for _, s := range list {
			if class != "" && !s.CanBook(class) {
				continue
			}
			out = append(out, toSlotResponse(s))
		}

		writeJSON(w, http.StatusOK, SlotListResponse{
			DoctorID: doctorID,
			Date:     booking.FormatDate(date),
			Slots:    out,
		})
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// doctorAndDate reads {doctorID} and ?date=, defaulting the date to today.
func doctorAndDate(w http.ResponseWriter, r *http.Request, svc AppointmentService) (uuid.UUID, time.Time, bool) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor id must be a valid UUID")
		return uuid.Nil, time.Time{}, false
	}

	raw := r.URL.Query().Get("date")
	if raw == "" {
		return doctorID, svc.Today(), true
	}

	date, err := booking.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return uuid.Nil, time.Time{}, false
	}
	return doctorID, date, true
}
