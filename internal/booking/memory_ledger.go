package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps slots in process memory with one mutex per slot key.
// The map lock is only held to find a slot, never while it is mutated.
type MemoryLedger struct {
	mu    sync.RWMutex
	slots map[string]*slotCell
	now   func() time.Time
}

type slotCell struct {
	mu  sync.Mutex
	rec SlotRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		slots: make(map[string]*slotCell),
		now:   time.Now,
	}
}

func (l *MemoryLedger) cell(key SlotKey) (*slotCell, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.slots[key.normalized().String()]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return c, nil
}

func (l *MemoryLedger) Reserve(ctx context.Context, key SlotKey, class Class) (SlotRecord, error) {
	c, err := l.cell(key)
	if err != nil {
		return SlotRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := applyReserve(&c.rec, class, l.now()); err != nil {
		return SlotRecord{}, err
	}

	onRollback(ctx, func() {
		c.mu.Lock()
		applyRelease(&c.rec, l.now())
		c.mu.Unlock()
	})

	return c.rec, nil
}

func (l *MemoryLedger) Release(ctx context.Context, key SlotKey) (SlotRecord, error) {
	c, err := l.cell(key)
	if err != nil {
		return SlotRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	released := c.rec.UsedCount > 0
	applyRelease(&c.rec, l.now())

	if released {
		onRollback(ctx, func() {
			c.mu.Lock()
			if c.rec.UsedCount < c.rec.TotalCapacity {
				c.rec.UsedCount++
			}
			c.mu.Unlock()
		})
	}

	return c.rec, nil
}

func (l *MemoryLedger) Slot(_ context.Context, key SlotKey) (SlotRecord, error) {
	c, err := l.cell(key)
	if err != nil {
		return SlotRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec, nil
}

func (l *MemoryLedger) SlotsForDoctor(_ context.Context, doctorID uuid.UUID, date time.Time) ([]SlotRecord, error) {
	day := DateOf(date)

	l.mu.RLock()
	cells := make([]*slotCell, 0)
	for _, c := range l.slots {
		if c.rec.Key.DoctorID == doctorID && c.rec.Key.Date.Equal(day) {
			cells = append(cells, c)
		}
	}
	l.mu.RUnlock()

	out := make([]SlotRecord, 0, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		out = append(out, c.rec)
		c.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key.Window < out[j].Key.Window })
	return out, nil
}

func (l *MemoryLedger) Provision(_ context.Context, spec SlotSpec) (SlotRecord, error) {
	if err := spec.Validate(); err != nil {
		return SlotRecord{}, err
	}

	key := spec.Key.normalized()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.slots[key.String()]; ok {
		return SlotRecord{}, ErrSlotExists
	}

	rec := SlotRecord{
		Key:              key,
		TotalCapacity:    spec.TotalCapacity,
		EmergencyReserve: spec.EmergencyReserve,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	l.slots[key.String()] = &slotCell{rec: rec}
	return rec, nil
}

func (l *MemoryLedger) SetSuspended(_ context.Context, key SlotKey, suspended bool) (SlotRecord, error) {
	c, err := l.cell(key)
	if err != nil {
		return SlotRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rec.Suspended = suspended
	c.rec.UpdatedAt = l.now()
	return c.rec, nil
}
