// Package handler provides HTTP handlers for the GreenGuard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/api/response"
	"github.com/greenguard/greenguard/internal/featureflags"
	"github.com/greenguard/greenguard/internal/provider/resilience"
)

// APIVersion is the public API version reported by the index endpoint.
const APIVersion = "1.0.0"

// CacheSize reports the number of entries in a named cache.
type CacheSize struct {
	Name string
	Len  func() int
}

// StreamCounter reports the number of open realtime sessions.
type StreamCounter interface {
	Count() int
}

// WarmerStatus reports cache warmer statistics.
type WarmerStatus interface {
	MetricsSnapshot() map[string]interface{}
}

// FlagReader reads feature flags.
type FlagReader interface {
	IsEnabled(ctx context.Context, key string) bool
}

// OpsHandlerConfig holds the dependencies of OpsHandler. Everything except
// the version strings is optional.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Caches    []CacheSize
	Streams   StreamCounter
	Warmer    WarmerStatus
	Flags     FlagReader
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsHandlerConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// Index handles GET / - API description.
func (h *OpsHandler) Index(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Index{
		Message: "GreenGuard AI API",
		Version: APIVersion,
		Endpoints: map[string]string{
			"current_aqi": "/api/current-aqi?latitude=<lat>&longitude=<lon>",
			"forecast":    "/api/forecast?latitude=<lat>&longitude=<lon>&days=7",
			"historical":  "/api/historical?latitude=<lat>&longitude=<lon>",
			"predict":     "/api/predict?latitude=<lat>&longitude=<lon>&days=7",
			"realtime":    "/ws/realtime-monitoring?latitude=<lat>&longitude=<lon>",
			"health":      "/health",
		},
	})
}

// HealthCheck handles GET /health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{Status: "healthy"})
}

// SystemStatus handles GET /ops/status - provider and subsystem status.
// Provider trouble degrades the status but never fails it; requests are
// still answered from cache or fallback data.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.cfg.Version,
		Summary:   "healthy",
		Providers: []models.ProviderStatus{},
		Caches:    []models.CacheStatus{},
	}

	if h.cfg.Registry != nil {
		status.Summary = h.cfg.Registry.Summary()
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	for _, c := range h.cfg.Caches {
		status.Caches = append(status.Caches, models.CacheStatus{Name: c.Name, Entries: c.Len()})
	}

	if h.cfg.Streams != nil {
		status.ActiveStreams = h.cfg.Streams.Count()
	}
	if h.cfg.Warmer != nil {
		status.Warmer = h.cfg.Warmer.MetricsSnapshot()
	}

	if h.cfg.Flags != nil {
		for _, key := range []string{featureflags.FlagCachedOnlyUpstream, featureflags.FlagDisableRealtimeAlerts} {
			if h.cfg.Flags.IsEnabled(r.Context(), key) {
				status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, key)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
	}

	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}

	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
