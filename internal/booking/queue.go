package booking

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// QueueView derives a doctor's pending queue from registry state on every
// call. Nothing is cached, so the result is never stale.
type QueueView struct {
	repo AppointmentRepository
}

func NewQueueView(repo AppointmentRepository) *QueueView {
	return &QueueView{repo: repo}
}

// QueueFor lists BOOKED appointments for doctorID on date, highest priority
// first, then by appointment time, then by queue number.
func (v *QueueView) QueueFor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	list, err := v.repo.ListBooked(ctx, doctorID, DateOf(date))
	if err != nil {
		return nil, err
	}

	out := list[:0]
	for _, a := range list {
		if a.Status == StatusBooked {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return byQueueOrder(out[i], out[j]) })
	return out, nil
}

func byQueueOrder(a, b Appointment) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.StartsAt.Equal(b.StartsAt) {
		return a.StartsAt.Before(b.StartsAt)
	}
	return a.QueueNumber < b.QueueNumber
}
