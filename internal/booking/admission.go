package booking

import (
	"fmt"
	"time"
)

// canAdmitNormal: normal bookings never touch the emergency reserve.
func canAdmitNormal(s SlotRecord) bool {
	return s.Status() == SlotOpen && s.NormalAvailable() > 0
}

// canAdmitEmergency: emergency bookings may take any remaining unit,
// including unreserved normal capacity.
func canAdmitEmergency(s SlotRecord) bool {
	return s.Status() == SlotOpen && s.EmergencyAvailable() > 0
}

// admit explains why a booking of class would be refused, or returns nil.
func admit(s SlotRecord, class Class) error {
	if s.Suspended {
		return ErrSlotSuspended
	}

	switch class {
	case ClassEmergency:
		if !canAdmitEmergency(s) {
			return ErrSlotFull
		}
	case ClassNormal:
		if !canAdmitNormal(s) {
			if s.EmergencyAvailable() > 0 {
				return fmt.Errorf("%w: only the emergency reserve remains", ErrSlotFull)
			}
			return ErrSlotFull
		}
	default:
		return fmt.Errorf("%w: unknown appointment class %q", ErrInvalidRequest, class)
	}
	return nil
}

// applyReserve debits one unit from s if class is admissible.
func applyReserve(s *SlotRecord, class Class, now time.Time) error {
	if err := admit(*s, class); err != nil {
		return err
	}
	s.UsedCount++
	s.UpdatedAt = now
	return nil
}

// applyRelease credits one unit back, floored at zero. Suspension is left alone.
func applyRelease(s *SlotRecord, now time.Time) {
	if s.UsedCount > 0 {
		s.UsedCount--
	}
	s.UpdatedAt = now
}

// CanBook reports whether a booking of class would currently be admitted.
func (s SlotRecord) CanBook(class Class) bool {
	return admit(s, class) == nil
}
