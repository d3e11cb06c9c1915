package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

const readinessTimeout = 3 * time.Second

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	hub       HubPinger
	version   string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub HubPinger, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		hub:       hub,
		version:   version,
		startedAt: time.Now(),
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ComponentCheck is one dependency's readiness.
type ComponentCheck struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// ReadinessResponse is the body of GET /api/health/ready.
type ReadinessResponse struct {
	Status string                    `json:"status"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:  "ok",
		Service: infrastructure.ServiceName,
		Version: h.version,
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}

// ReadinessCheck handles GET /api/health/ready. The service is ready when
// Central Hub answers a ping.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	start := time.Now()
	err := h.hub.Ping(ctx)
	check := ComponentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
	resp := ReadinessResponse{Status: "ready", Checks: map[string]ComponentCheck{"central_hub": check}}

	if err != nil {
		check.Status = "down"
		check.Outcome = centralhub.KindOf(err).String()
		check.Message = centralhub.MessageOf(err)
		resp.Status = "not_ready"
		resp.Checks["central_hub"] = check

		h.logger.WarnContext(r.Context(), "readiness check failed",
			slog.String("outcome", check.Outcome),
			slog.String("error", err.Error()))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
