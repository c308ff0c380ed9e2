// Package featureflags provides runtime switches that operators can flip
// without a redeploy.
package featureflags

import (
	"time"
)

// Well-known feature flag keys.
const (
	// FlagCachedOnlyUpstream serves cached or fallback readings without
	// contacting the upstream providers.
	FlagCachedOnlyUpstream = "cached_only_upstream"

	// FlagDisableRealtimeAlerts strips health alerts from realtime frames.
	FlagDisableRealtimeAlerts = "disable_realtime_alerts"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FlagUpdate represents a single flag change.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest is a batch of flag changes with an audit reason.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Flags converts the request into flags ready to store.
func (r FlagUpdateRequest) Flags() []*Flag {
	flags := make([]*Flag, 0, len(r.Updates))
	for _, u := range r.Updates {
		if u.Key == "" {
			continue
		}
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value})
	}
	return flags
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	case string:
		switch v {
		case "true", "1", "on":
			return true
		case "false", "0", "off":
			return false
		}
		return defaultValue
	default:
		return defaultValue
	}
}

// DefaultFlags returns the flags in effect when nothing is stored.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagCachedOnlyUpstream: {
			Key:       FlagCachedOnlyUpstream,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableRealtimeAlerts: {
			Key:       FlagDisableRealtimeAlerts,
			Value:     false,
			UpdatedAt: now,
		},
	}
}
