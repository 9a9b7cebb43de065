package booking

import (
	"context"
	"fmt"
	"sync/atomic"
)

// QueueNumbers hands out queue numbers. Implementations must be safe for
// concurrent use and never return the same number twice.
type QueueNumbers interface {
	Next(ctx context.Context) (int64, error)
}

// AtomicSequence is the in-process generator: one shared counter, created
// once at startup and never reset.
type AtomicSequence struct {
	last atomic.Int64
}

// NewAtomicSequence starts the counter at start; the first number issued
// is start+1.
func NewAtomicSequence(start int64) *AtomicSequence {
	s := &AtomicSequence{}
	s.last.Store(start)
	return s
}

func (s *AtomicSequence) Next(context.Context) (int64, error) {
	return s.last.Add(1), nil
}

// Last returns the most recently issued number.
func (s *AtomicSequence) Last() int64 {
	return s.last.Load()
}

// SequenceStart picks the starting point for a new generator: the configured
// floor, or the highest number already persisted if that is larger.
func SequenceStart(ctx context.Context, repo AppointmentRepository, floor int64) (int64, error) {
	highest, err := repo.MaxQueueNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("load highest queue number: %w", err)
	}
	return max(floor, highest), nil
}
