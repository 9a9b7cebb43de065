package booking

import (
	"context"
	"sync"
)

// TxRunner executes a unit of work atomically.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type journal struct {
	mu   sync.Mutex
	undo []func()
}

type journalKey struct{}

// onRollback registers fn to run if the surrounding JournalRunner unit fails.
// Outside a unit it does nothing.
func onRollback(ctx context.Context, fn func()) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// JournalRunner gives the in-memory stores all-or-nothing units of work by
// replaying compensating actions in reverse order when fn fails.
type JournalRunner struct{}

func (JournalRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}
