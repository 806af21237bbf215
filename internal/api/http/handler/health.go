package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health serves GET /healthz.
type Health struct {
	checks map[string]Check
	logger *logger.Logger
}

func NewHealth(checks map[string]Check, logger *logger.Logger) *Health {
	return &Health{checks: checks, logger: logger}
}

func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Health check failed",
				"check", name,
				"error", err.Error())
			results[name] = "unavailable"
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		response.Write(w, r, http.StatusServiceUnavailable, "Service unavailable", results)
		return
	}
	response.Success(w, r, "OK", results)
}

// Snapshotter reads current metric values.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]metrics.Point, error)
}

// Metrics serves GET /metrics.
type Metrics struct {
	source Snapshotter
}

func NewMetrics(source Snapshotter) *Metrics {
	return &Metrics{source: source}
}

func (h *Metrics) List(w http.ResponseWriter, r *http.Request) {
	points, err := h.source.Snapshot(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, r, "Success", points)
}
