package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/api/response"
	"github.com/greenguard/greenguard/internal/featureflags"
)

// FlagLister lists feature flags.
type FlagLister interface {
	GetAllFlags(ctx context.Context) map[string]*featureflags.Flag
}

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service FlagLister
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service FlagLister) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /api/feature-flags - list all feature flags.
// Flags are changed through the worker trigger subscription.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	out := make([]models.FeatureFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, models.FeatureFlag{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.Timestamp(f.UpdatedAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	response.JSON(w, r, http.StatusOK, models.FeatureFlagsResponse{Flags: out})
}
