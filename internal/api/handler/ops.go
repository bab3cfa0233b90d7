// Package handler provides HTTP handlers for the AtmosGuard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
)

// readinessTimeout bounds every dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck is a named readiness probe, e.g. a database ping.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies of the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Checks    []DependencyCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    []DependencyCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
	}
}

// HealthCheck handles GET /v1/ops/health. It answers as long as the process serves.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Now(),
		Details: map[string]any{"version": h.version, "buildTime": h.buildTime},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing dependency makes it 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{Status: models.HealthStatusOK, Time: models.Now()}
	for _, s := range h.runChecks(r.Context()) {
		if s.Detail == nil {
			continue
		}
		health.Status = models.HealthStatusFail
		if health.Details == nil {
			health.Details = make(map[string]any)
		}
		health.Details[s.Name] = *s.Detail
	}

	code := http.StatusOK
	if health.Status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status. Failing storage makes the system
// FAIL; an unhealthy provider only degrades it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Now(),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}
	for _, s := range status.Subsystems {
		status.Status = status.Status.Worse(s.Status)
	}

	if h.registry != nil {
		for _, ph := range h.registry.Snapshot() {
			ps := providerStatus(ph)
			if ps.Status != models.HealthStatusOK {
				status.Status = status.Status.Worse(models.HealthStatusDegraded)
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, len(h.checks))
	for i, c := range h.checks {
		out[i] = models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := runCheck(ctx, c); err != nil {
			detail := err.Error()
			out[i].Status = models.HealthStatusFail
			out[i].Detail = &detail
		}
	}
	return out
}

func runCheck(ctx context.Context, c DependencyCheck) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return c.Check(ctx)
}

var providerHealth = map[resilience.Status]models.HealthStatus{
	resilience.StatusUp:      models.HealthStatusOK,
	resilience.StatusProbing: models.HealthStatusDegraded,
	resilience.StatusDown:    models.HealthStatusFail,
}

func providerStatus(h resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            h.Name,
		Status:              providerHealth[h.Status],
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
		LastSuccessAt:       optionalTimestamp(h.LastSuccessAt),
		LastFailureAt:       optionalTimestamp(h.LastFailureAt),
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}

func optionalTimestamp(t time.Time) *models.Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := models.Timestamp(t)
	return &ts
}
