// Package aqi holds the AQI severity scale and the weather-adjustment engine
// that blends a baseline air-quality reading with current weather.
package aqi

// Category names, in increasing severity.
const (
	CategoryGood               = "Good"
	CategoryModerate           = "Moderate"
	CategoryUnhealthySensitive = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          = "Unhealthy"
	CategoryVeryUnhealthy      = "Very Unhealthy"
	CategoryHazardous          = "Hazardous"
)

// Breakpoint is the inclusive upper bound of a category.
type Breakpoint struct {
	Max  float64
	Name string
}

// Breakpoints is the fixed category table. Values above the last bound are Hazardous.
var Breakpoints = []Breakpoint{
	{Max: 50, Name: CategoryGood},
	{Max: 100, Name: CategoryModerate},
	{Max: 150, Name: CategoryUnhealthySensitive},
	{Max: 200, Name: CategoryUnhealthy},
	{Max: 300, Name: CategoryVeryUnhealthy},
}

// Category maps an AQI value to its severity name.
func Category(aqi float64) string {
	for _, bp := range Breakpoints {
		if aqi <= bp.Max {
			return bp.Name
		}
	}
	return CategoryHazardous
}

// Alert levels emitted on the realtime stream.
const (
	AlertDanger  = "danger"
	AlertWarning = "warning"
)

// Alert is an inline warning attached to a realtime update.
type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Alerts returns the alerts for an AQI value. The result is never nil.
func Alerts(aqi float64) []Alert {
	switch {
	case aqi > 150:
		return []Alert{{Level: AlertDanger, Message: "Very unhealthy air quality – avoid outdoor activities"}}
	case aqi > 100:
		return []Alert{{Level: AlertWarning, Message: "Unhealthy air quality for sensitive groups"}}
	default:
		return []Alert{}
	}
}
