package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/directory"
)

func TestSeedBuildsGrid(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	ledger := booking.NewMemoryLedger()

	opts := DefaultSeedOptions(time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC))
	opts.Departments = 2
	opts.DoctorsPerDept = 2
	opts.Patients = 10
	opts.Seed = 42

	sum, err := Seed(ctx, dir, ledger, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Departments: 2, Doctors: 4, Patients: 10, Slots: 4 * 7 * 13}, sum)

	doctors, err := dir.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 4)

	slots, err := ledger.SlotsForDoctor(ctx, doctors[0].ID, opts.StartDate.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, slots, 13)
	assert.Equal(t, booking.TimeWindow("08:00-08:30"), slots[0].Key.Window)
	assert.Equal(t, booking.TimeWindow("14:00-14:30"), slots[12].Key.Window)
	assert.Equal(t, 3, slots[0].TotalCapacity)
	assert.Equal(t, 1, slots[0].EmergencyReserve)

	n, err := ProvisionDays(ctx, ledger, doctors[0].ID, opts)
	require.NoError(t, err)
	assert.Zero(t, n, "rerunning leaves existing slots alone")
}
