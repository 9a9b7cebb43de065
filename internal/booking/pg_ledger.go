package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-slot-queue/internal/db"
)

const slotColumns = `doctor_id, slot_date, time_window, total_capacity, used_count, emergency_reserve, suspended, created_at, updated_at`

// PgLedger stores slots in Postgres. Reserve and Release lock the slot row
// with SELECT ... FOR UPDATE, which serialises them per key.
type PgLedger struct {
	pool *pgxpool.Pool
	tx   *db.TxRunner
}

func NewPgLedger(pool *pgxpool.Pool, tx *db.TxRunner) *PgLedger {
	return &PgLedger{pool: pool, tx: tx}
}

func scanSlot(row pgx.Row) (SlotRecord, error) {
	var s SlotRecord
	var window string

	err := row.Scan(
		&s.Key.DoctorID,
		&s.Key.Date,
		&window,
		&s.TotalCapacity,
		&s.UsedCount,
		&s.EmergencyReserve,
		&s.Suspended,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SlotRecord{}, ErrSlotNotFound
		}
		return SlotRecord{}, err
	}

	s.Key.Window = TimeWindow(window)
	s.Key.Date = DateOf(s.Key.Date)
	return s, nil
}

func (l *PgLedger) lockSlot(ctx context.Context, key SlotKey) (SlotRecord, error) {
	key = key.normalized()
	row := db.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1 AND slot_date = $2 AND time_window = $3
		FOR UPDATE
	`, key.DoctorID, DateOf(key.Date), string(key.Window))
	return scanSlot(row)
}

func (l *PgLedger) writeUsed(ctx context.Context, s SlotRecord) (SlotRecord, error) {
	row := db.Conn(ctx, l.pool).QueryRow(ctx, `
		UPDATE slots
		SET used_count = $4,
		    updated_at = now()
		WHERE doctor_id = $1 AND slot_date = $2 AND time_window = $3
		RETURNING `+slotColumns,
		s.Key.DoctorID, s.Key.Date, string(s.Key.Window), s.UsedCount)
	return scanSlot(row)
}

func (l *PgLedger) Reserve(ctx context.Context, key SlotKey, class Class) (SlotRecord, error) {
	var out SlotRecord

	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := l.lockSlot(ctx, key)
		if err != nil {
			return err
		}
		if err := applyReserve(&s, class, time.Now()); err != nil {
			return err
		}
		out, err = l.writeUsed(ctx, s)
		return err
	})
	if err != nil {
		return SlotRecord{}, err
	}
	return out, nil
}

func (l *PgLedger) Release(ctx context.Context, key SlotKey) (SlotRecord, error) {
	var out SlotRecord

	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := l.lockSlot(ctx, key)
		if err != nil {
			return err
		}
		applyRelease(&s, time.Now())
		out, err = l.writeUsed(ctx, s)
		return err
	})
	if err != nil {
		return SlotRecord{}, err
	}
	return out, nil
}

func (l *PgLedger) Slot(ctx context.Context, key SlotKey) (SlotRecord, error) {
	key = key.normalized()
	row := db.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1 AND slot_date = $2 AND time_window = $3
	`, key.DoctorID, DateOf(key.Date), string(key.Window))
	return scanSlot(row)
}

func (l *PgLedger) SlotsForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotRecord, error) {
	rows, err := db.Conn(ctx, l.pool).Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1 AND slot_date = $2
		ORDER BY time_window
	`, doctorID, DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var result []SlotRecord
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *PgLedger) Provision(ctx context.Context, spec SlotSpec) (SlotRecord, error) {
	if err := spec.Validate(); err != nil {
		return SlotRecord{}, err
	}
	key := spec.Key.normalized()

	row := db.Conn(ctx, l.pool).QueryRow(ctx, `
		INSERT INTO slots (doctor_id, slot_date, time_window, total_capacity, used_count, emergency_reserve, suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, false, now(), now())
		ON CONFLICT (doctor_id, slot_date, time_window) DO NOTHING
		RETURNING `+slotColumns,
		key.DoctorID, key.Date, string(key.Window), spec.TotalCapacity, spec.EmergencyReserve)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return SlotRecord{}, ErrSlotExists
	}
	return s, err
}

func (l *PgLedger) SetSuspended(ctx context.Context, key SlotKey, suspended bool) (SlotRecord, error) {
	key = key.normalized()
	row := db.Conn(ctx, l.pool).QueryRow(ctx, `
		UPDATE slots
		SET suspended = $4,
		    updated_at = now()
		WHERE doctor_id = $1 AND slot_date = $2 AND time_window = $3
		RETURNING `+slotColumns,
		key.DoctorID, DateOf(key.Date), string(key.Window), suspended)
	return scanSlot(row)
}
