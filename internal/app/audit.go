package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
)

const auditListLimit = 1_000_000

type AuditReport struct {
	Slots        int
	Appointments int
	Violations   []string
}

func (r AuditReport) OK() bool { return len(r.Violations) == 0 }

func (r *AuditReport) violate(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

// Audit cross-checks the ledger against the appointment records for the
// given doctors and dates. Run it only while nothing else writes.
func Audit(ctx context.Context, ledger booking.SlotLedger, repo booking.AppointmentRepository, doctors []uuid.UUID, dates []time.Time, emergencyPriority int) (AuditReport, error) {
	var report AuditReport

	var all []booking.Appointment
	for _, st := range []booking.AppointmentStatus{booking.StatusBooked, booking.StatusCompleted, booking.StatusCancelled, booking.StatusExpired} {
		list, err := repo.ListByStatus(ctx, st, auditListLimit)
		if err != nil {
			return report, err
		}
		all = append(all, list...)
	}
	report.Appointments = len(all)

	consumed := make(map[string]int)
	booked := make(map[string]uuid.UUID)
	numbers := make(map[int64]uuid.UUID)

	for _, a := range all {
		if prev, dup := numbers[a.QueueNumber]; dup {
			report.violate("queue number %d issued to %s and %s", a.QueueNumber, prev, a.ID)
		}
		numbers[a.QueueNumber] = a.ID

		want := 0
		if a.Class == booking.ClassEmergency {
			want = emergencyPriority
		}
		if a.Priority != want {
			report.violate("appointment %s has priority %d, want %d for %s", a.ID, a.Priority, want, a.Class)
		}

		if a.Status == booking.StatusBooked || a.Status == booking.StatusCompleted {
			consumed[a.SlotKey().String()]++
		}
		if a.Status == booking.StatusBooked {
			k := a.PatientID.String() + "/" + a.DoctorID.String() + "/" + booking.FormatDate(a.Date)
			if prev, dup := booked[k]; dup {
				report.violate("patient %s holds two bookings (%s, %s) with doctor %s on %s",
					a.PatientID, prev, a.ID, a.DoctorID, booking.FormatDate(a.Date))
			}
			booked[k] = a.ID
		}
	}

	for _, doctorID := range doctors {
		for _, date := range dates {
			slots, err := ledger.SlotsForDoctor(ctx, doctorID, date)
			if err != nil {
				return report, err
			}
			for _, s := range slots {
				report.Slots++
				if s.UsedCount < 0 || s.UsedCount > s.TotalCapacity {
					report.violate("slot %s used %d outside [0, %d]", s.Key, s.UsedCount, s.TotalCapacity)
				}
				if n := consumed[s.Key.String()]; n != s.UsedCount {
					report.violate("slot %s used %d but %d appointments hold it", s.Key, s.UsedCount, n)
				}
			}
		}
	}

	return report, nil
}
