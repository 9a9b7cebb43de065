package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/config"
)

func memoryStack(t *testing.T) *app.Stack {
	t.Helper()
	stack, err := app.Build(context.Background(), config.Config{
		StoreBackend:   config.BackendMemory,
		LockBackend:    config.LockLocal,
		QueueSequence:  config.SequenceLocal,
		QueueFloor:     1000,
		EmergencyPrio:  100,
		TxMaxRetries:   1,
		ClinicTimezone: "UTC",
	}, zerolog.Nop())
	require.NoError(t, err)
	return stack
}

func run(t *testing.T, stack *app.Stack, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(func(context.Context) (*app.Stack, error) { return stack, nil })
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProvisionSuspendResume(t *testing.T) {
	stack := memoryStack(t)
	doctor := uuid.NewString()
	slot := []string{"--doctor", doctor, "--date", "2026-10-20", "--window", "09:00-09:30"}

	out, err := run(t, stack, append([]string{"provision", "--capacity", "4", "--reserve", "2"}, slot...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "OPEN")

	_, err = run(t, stack, append([]string{"provision"}, slot...)...)
	assert.ErrorIs(t, err, booking.ErrSlotExists)

	out, err = run(t, stack, append([]string{"suspend"}, slot...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "SUSPENDED")

	out, err = run(t, stack, append([]string{"resume"}, slot...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "OPEN")

	out, err = run(t, stack, "show", "--doctor", doctor, "--date", "2026-10-20")
	require.NoError(t, err)
	assert.Contains(t, out, "09:00-09:30")
}

func TestProvisionDaysAndQueue(t *testing.T) {
	stack := memoryStack(t)
	doctor := uuid.New()
	tomorrow := booking.FormatDate(time.Now().UTC().AddDate(0, 0, 1))

	out, err := run(t, stack, "provision-days", "--doctor", doctor.String(), "--date", tomorrow, "--days", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "provisioned 26 slots")

	date, err := booking.ParseDate(tomorrow)
	require.NoError(t, err)
	a, err := stack.Registry.CreateAppointment(context.Background(), booking.BookingRequest{
		PatientID:    uuid.New(),
		DoctorID:     doctor,
		DepartmentID: uuid.New(),
		Date:         date,
		Window:       "08:00-08:30",
		Class:        booking.ClassEmergency,
	})
	require.NoError(t, err)

	out, err = run(t, stack, "queue", "--doctor", doctor.String(), "--date", tomorrow)
	require.NoError(t, err)
	assert.Contains(t, out, a.PatientID.String())
	assert.Contains(t, out, "EMERGENCY")
}

func TestBadFlags(t *testing.T) {
	stack := memoryStack(t)

	_, err := run(t, stack, "show", "--doctor", "nobody")
	assert.Error(t, err)

	_, err = run(t, stack, "suspend", "--doctor", uuid.NewString(), "--window", "late")
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = run(t, stack, "suspend", "--doctor", uuid.NewString(), "--window", "09:00-09:30")
	assert.ErrorIs(t, err, booking.ErrSlotNotFound)
}

func TestExpireCommand(t *testing.T) {
	out, err := run(t, memoryStack(t), "expire")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 appointments")
}
