package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
)

type CreateAppointmentRequest struct {
	PatientID    string `json:"patient_id"`
	DoctorID     string `json:"doctor_id"`
	DepartmentID string `json:"department_id"`
	Date         string `json:"date"`
	TimeWindow   string `json:"time_window"`
	Class        string `json:"class"`
	Symptoms     string `json:"symptoms,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DepartmentID uuid.UUID `json:"department_id"`
	Date         string    `json:"date"`
	TimeWindow   string    `json:"time_window"`
	StartsAt     time.Time `json:"starts_at"`
	Class        string    `json:"class"`
	Priority     int       `json:"priority"`
	Status       string    `json:"status"`
	QueueNumber  int64     `json:"queue_number"`
	Symptoms     string    `json:"symptoms,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
}

type QueueEntry struct {
	Position int `json:"position"`
	AppointmentResponse
}

type QueueResponse struct {
	DoctorID uuid.UUID    `json:"doctor_id"`
	Date     string       `json:"date"`
	Entries  []QueueEntry `json:"entries"`
}

type SlotResponse struct {
	DoctorID           uuid.UUID `json:"doctor_id"`
	Date               string    `json:"date"`
	TimeWindow         string    `json:"time_window"`
	TotalCapacity      int       `json:"total_capacity"`
	UsedCount          int       `json:"used_count"`
	EmergencyReserve   int       `json:"emergency_reserve"`
	Status             string    `json:"status"`
	NormalAvailable    int       `json:"normal_available"`
	EmergencyAvailable int       `json:"emergency_available"`
	CanBookNormal      bool      `json:"can_book_normal"`
	CanBookEmergency   bool      `json:"can_book_emergency"`
}

type SlotListResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		DepartmentID: a.DepartmentID,
		Date:         booking.FormatDate(a.Date),
		TimeWindow:   string(a.Window),
		StartsAt:     a.StartsAt,
		Class:        string(a.Class),
		Priority:     a.Priority,
		Status:       string(a.Status),
		QueueNumber:  a.QueueNumber,
		Symptoms:     a.Symptoms,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toAppointmentList(list []booking.Appointment) AppointmentListResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return AppointmentListResponse{Appointments: out, Count: len(out)}
}

func toSlotResponse(s booking.SlotRecord) SlotResponse {
	return SlotResponse{
		DoctorID:           s.Key.DoctorID,
		Date:               booking.FormatDate(s.Key.Date),
		TimeWindow:         string(s.Key.Window),
		TotalCapacity:      s.TotalCapacity,
		UsedCount:          s.UsedCount,
		EmergencyReserve:   s.EmergencyReserve,
		Status:             string(s.Status()),
		NormalAvailable:    s.NormalAvailable(),
		EmergencyAvailable: s.EmergencyAvailable(),
		CanBookNormal:      s.CanBook(booking.ClassNormal),
		CanBookEmergency:   s.CanBook(booking.ClassEmergency),
	}
}
