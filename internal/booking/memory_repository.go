package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process AppointmentRepository. The booked index
// plays the role of the partial unique index in Postgres, and issued mirrors
// the unique queue_number column.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Appointment
	booked map[string]uuid.UUID
	issued map[int64]uuid.UUID
	events []Event
	lastEv int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]Appointment),
		booked: make(map[string]uuid.UUID),
		issued: make(map[int64]uuid.UUID),
	}
}

func bookedKey(patientID, doctorID uuid.UUID, date time.Time) string {
	return patientID.String() + "/" + doctorID.String() + "/" + FormatDate(DateOf(date))
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) FindBooked(_ context.Context, patientID, doctorID uuid.UUID, date time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.booked[bookedKey(patientID, doctorID, date)]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a := r.byID[id]
	return &a, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := bookedKey(a.PatientID, a.DoctorID, a.Date)
	if a.Status == StatusBooked {
		if _, taken := r.booked[key]; taken {
			return ErrDuplicateBooking
		}
	}
	if _, taken := r.issued[a.QueueNumber]; taken {
		return ErrQueueNumberTaken
	}
	if a.Status == StatusBooked {
		r.booked[key] = a.ID
	}
	r.issued[a.QueueNumber] = a.ID
	r.byID[a.ID] = *a

	id, number := a.ID, a.QueueNumber
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byID, id)
		if r.issued[number] == id {
			delete(r.issued, number)
		}
		if r.booked[key] == id {
			delete(r.booked, key)
		}
	})
	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	prev := a
	a.Status = to
	a.UpdatedAt = at
	r.byID[id] = a

	key := bookedKey(a.PatientID, a.DoctorID, a.Date)
	if from == StatusBooked && r.booked[key] == id {
		delete(r.booked, key)
	}

	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		cur, ok := r.byID[id]
		if !ok || cur.Status != to {
			return
		}
		if prev.Status == StatusBooked {
			if _, taken := r.booked[key]; taken {
				return
			}
			r.booked[key] = id
		}
		r.byID[id] = prev
	})

	out := a
	return &out, nil
}

func (r *MemoryRepository) ListBooked(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	day := DateOf(date)
	return r.filter(func(a Appointment) bool {
		return a.Status == StatusBooked && a.DoctorID == doctorID && a.Date.Equal(day)
	}, 0, byQueueOrder), nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.PatientID == patientID }, 0, newestFirst), nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, status AppointmentStatus, limit int) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.Status == status }, limit, newestFirst), nil
}

func (r *MemoryRepository) ListOverdue(_ context.Context, day time.Time, limit int) ([]Appointment, error) {
	cutoff := DateOf(day)
	return r.filter(func(a Appointment) bool {
		return a.Status == StatusBooked && a.Date.Before(cutoff)
	}, limit, func(a, b Appointment) bool {
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.QueueNumber < b.QueueNumber
	}), nil
}

func (r *MemoryRepository) MaxQueueNumber(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var highest int64
	for _, a := range r.byID {
		highest = max(highest, a.QueueNumber)
	}
	return highest, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastEv++
	ev.ID = r.lastEv
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)

	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := range r.events {
			if r.events[i].ID == ev.ID {
				r.events = append(r.events[:i], r.events[i+1:]...)
				return
			}
		}
	})
	return nil
}

// Events returns a copy of the recorded audit events.
func (r *MemoryRepository) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}

func (r *MemoryRepository) filter(keep func(Appointment) bool, limit int, less func(a, b Appointment) bool) []Appointment {
	r.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newestFirst(a, b Appointment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.QueueNumber > b.QueueNumber
}
