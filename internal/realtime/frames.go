package realtime

import (
	"time"

	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/conditions"
)

// Frame types sent to streaming clients.
const (
	TypeConnectionEstablished = "connection_established"
	TypeRealtimeUpdate        = "realtime_update"
	TypeError                 = "error"
)

// ConnectedMessage is the acknowledgement text sent on connect.
const ConnectedMessage = "Real-time monitoring connected"

// TimestampLayout formats frame timestamps (UTC).
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// ConnectionEstablished acknowledges a new session.
type ConnectionEstablished struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorFrame reports a failed iteration. The session keeps running.
type ErrorFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Update carries one adjusted reading.
type Update struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Location  Location       `json:"location"`
	AQI       AQIPayload     `json:"aqi"`
	Weather   WeatherPayload `json:"weather"`
	Alerts    []aqi.Alert    `json:"alerts"`
}

// Location echoes the monitored coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AQIPayload is the air-quality part of an update.
type AQIPayload struct {
	Value  float64 `json:"value"`
	Status string  `json:"status"`
	PM25   float64 `json:"pm25"`
	PM10   float64 `json:"pm10"`
	CO     float64 `json:"co"`
	NO2    float64 `json:"no2"`
	O3     float64 `json:"o3"`
	SO2    float64 `json:"so2"`
}

// WeatherPayload is the weather part of an update.
type WeatherPayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func newConnectionEstablished(now time.Time) ConnectionEstablished {
	return ConnectionEstablished{
		Type:      TypeConnectionEstablished,
		Message:   ConnectedMessage,
		Timestamp: timestamp(now),
	}
}

func newErrorFrame(err error, now time.Time) ErrorFrame {
	return ErrorFrame{
		Type:      TypeError,
		Message:   err.Error(),
		Timestamp: timestamp(now),
	}
}

// newUpdate builds an update from raw readings and the adjusted snapshot.
// Particulates come from the snapshot, the remaining pollutants from the
// provider reading.
func newUpdate(lat, lon float64, r *conditions.Readings, cur *conditions.Current, alerts bool) Update {
	value := aqi.Round(cur.AQI, 1)
	u := Update{
		Type:      TypeRealtimeUpdate,
		Timestamp: timestamp(cur.Timestamp),
		Location:  Location{Latitude: lat, Longitude: lon},
		AQI: AQIPayload{
			Value:  value,
			Status: aqi.Category(value),
			PM25:   aqi.Round(cur.PM25, 1),
			PM10:   aqi.Round(cur.PM10, 1),
			CO:     r.AirQuality.CO,
			NO2:    r.AirQuality.NO2,
			O3:     r.AirQuality.O3,
			SO2:    r.AirQuality.SO2,
		},
		Weather: WeatherPayload{
			Temperature: aqi.Round(r.Weather.Temperature, 1),
			Humidity:    aqi.Round(r.Weather.Humidity, 1),
			WindSpeed:   aqi.Round(r.Weather.WindSpeed, 1),
			Description: r.Weather.Description,
		},
		Alerts: []aqi.Alert{},
	}
	if alerts {
		u.Alerts = aqi.Alerts(value)
	}
	return u
}
