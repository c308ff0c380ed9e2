package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/weather"
)

func TestMock(t *testing.T) {
	m := weather.Mock()
	assert.Equal(t, 22.0, m.Temperature)
	assert.Equal(t, 65.0, m.Humidity)
	assert.Equal(t, 3.5, m.WindSpeed)
	assert.Equal(t, "Clear sky", m.Description)
}

func TestReading_Conditions(t *testing.T) {
	r := weather.Reading{Temperature: 31, Humidity: 20, WindSpeed: 11, Description: "haze"}
	assert.Equal(t, aqi.Conditions{Temperature: 31, Humidity: 20, WindSpeed: 11}, r.Conditions())
}
