package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotLedger owns the capacity records. Reserve and Release are
// linearizable per SlotKey: concurrent calls on one key never overshoot
// TotalCapacity. Calls on distinct keys do not contend.
type SlotLedger interface {
	// Reserve debits one unit of the requested class. It fails with
	// ErrSlotNotFound, ErrSlotSuspended or ErrSlotFull.
	Reserve(ctx context.Context, key SlotKey, class Class) (SlotRecord, error)
	// Release credits one unit back, floored at zero.
	Release(ctx context.Context, key SlotKey) (SlotRecord, error)

	Slot(ctx context.Context, key SlotKey) (SlotRecord, error)
	SlotsForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotRecord, error)

	// Provision and SetSuspended are the inventory and operator hooks.
	Provision(ctx context.Context, spec SlotSpec) (SlotRecord, error)
	SetSuspended(ctx context.Context, key SlotKey, suspended bool) (SlotRecord, error)
}

// AvailableSlots lists a doctor's slots on date that would admit class.
func AvailableSlots(ctx context.Context, l SlotLedger, doctorID uuid.UUID, date time.Time, class Class) ([]SlotRecord, error) {
	all, err := l.SlotsForDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	out := make([]SlotRecord, 0, len(all))
	for _, s := range all {
		if s.CanBook(class) {
			out = append(out, s)
		}
	}
	return out, nil
}
