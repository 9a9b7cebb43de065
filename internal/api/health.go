package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and dependency readiness. The memory
// backend runs with neither dependency.
type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// dependency is one readiness probe. A nil probe means the backend is not
// configured. Losing a critical dependency makes the service unready.
type dependency struct {
	name     string
	critical bool
	probe    func(context.Context) error
}

func (h *HealthHandler) dependencies() []dependency {
	deps := []dependency{{name: "postgres", critical: true}, {name: "redis"}}
	if h.pgPool != nil {
		deps[0].probe = h.pgPool.Ping
	}
	if h.redis != nil {
		deps[1].probe = func(ctx context.Context) error { return h.redis.Ping(ctx).Err() }
	}
	return deps
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	states := make(map[string]string)
	status := "ok"

	for _, dep := range h.dependencies() {
		if dep.probe == nil {
			states[dep.name] = "disabled"
			continue
		}
		if err := ping(ctx, dep.probe); err != nil {
			states[dep.name] = "down"
			switch {
			case dep.critical, status == "degraded":
				status = "error"
			case status == "ok":
				status = "degraded"
			}
			continue
		}
		states[dep.name] = "ok"
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: states,
	})
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return fn(ctx)
}
