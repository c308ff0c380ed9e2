package models

// Health represents the health status of the service.
type Health struct {
	Status string `json:"status"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status                 HealthStatus           `json:"status"`
	Time                   Timestamp              `json:"time"`
	Version                string                 `json:"version,omitempty"`
	Summary                string                 `json:"summary"`
	Providers              []ProviderStatus       `json:"providers"`
	Caches                 []CacheStatus          `json:"caches"`
	ActiveStreams          int                    `json:"activeStreams"`
	Warmer                 map[string]interface{} `json:"warmer,omitempty"`
	ActiveDegradationFlags []string               `json:"activeDegradationFlags,omitempty"`
}

// CacheStatus reports the size of a provider cache.
type CacheStatus struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// FeatureFlagsResponse lists the current feature flags.
type FeatureFlagsResponse struct {
	Flags []FeatureFlag `json:"flags"`
}

// FeatureFlag is a single flag value.
type FeatureFlag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt Timestamp   `json:"updatedAt"`
}
