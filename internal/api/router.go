package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/directory"
)

type RouterConfig struct {
	Service   AppointmentService
	Queue     QueueReader
	Slots     SlotReader
	Directory directory.Directory
	Health    *HealthHandler
	Logger    zerolog.Logger

	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil, "", "")
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

		r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Directory))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))

		r.Get("/doctors/{doctorID}/queue", doctorQueueHandler(cfg.Service, cfg.Queue))
		r.Get("/doctors/{doctorID}/slots", doctorSlotsHandler(cfg.Service, cfg.Slots))
	})

	return r
}
