// Package handler provides HTTP handlers for the ChargeWatch API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/chargewatch/chargewatch/internal/activity"
	"github.com/chargewatch/chargewatch/internal/api/models"
	"github.com/chargewatch/chargewatch/internal/api/response"
	"github.com/chargewatch/chargewatch/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	sessions  *activity.Registry
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, sessions *activity.Registry, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		sessions:  sessions,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// The service holds all session state in memory, so readiness only degrades
// when an upstream circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.overallStatus()
	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if status == models.HealthStatusFail {
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - session counts and provider circuits.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status:         h.overallStatus(),
		Time:           now,
		ActiveSessions: h.sessionCount(),
		Providers:      h.providerStatuses(),
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) sessionCount() int {
	if h.sessions == nil {
		return 0
	}
	return h.sessions.Count()
}

func (h *OpsHandler) overallStatus() models.HealthStatus {
	if h.providers == nil {
		return models.HealthStatusOK
	}
	for _, p := range h.providers.GetAllHealth() {
		if p.IsUnhealthy() {
			return models.HealthStatusDegraded
		}
	}
	return models.HealthStatusOK
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.providers.GetAllHealth()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		status := models.HealthStatusOK
		switch {
		case p.IsUnhealthy():
			status = models.HealthStatusFail
		case p.IsDegraded():
			status = models.HealthStatusDegraded
		}

		ps := models.ProviderStatus{
			Provider:     p.Name,
			Status:       status,
			CircuitState: circuitStateName(p.CircuitState),
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		statuses = append(statuses, ps)
	}
	return statuses
}

func circuitStateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
