package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/config"
)

func TestNewServerServesMemoryStack(t *testing.T) {
	cfg := config.Config{
		Env:            "test",
		HTTPPort:       "18080",
		StoreBackend:   config.BackendMemory,
		LockBackend:    config.LockLocal,
		QueueSequence:  config.SequenceLocal,
		QueueFloor:     1000,
		EmergencyPrio:  100,
		TxMaxRetries:   1,
		ClinicTimezone: "UTC",
	}
	stack, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(stack.Close)

	srv := newServer(cfg, stack, zerolog.Nop())
	assert.Equal(t, ":18080", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
