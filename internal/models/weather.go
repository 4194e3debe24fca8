package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidWeatherResult is returned when weather values fall outside physical ranges.
var ErrInvalidWeatherResult = errors.New("invalid weather result")

// WeatherResult is the normalized outcome of a weather lookup.
// Pointer fields are nil when the value is unavailable.
type WeatherResult struct {
	LocationUsed          string   `json:"location_used"`
	TemperatureCelsius    *float64 `json:"current_temperature_celsius,omitempty"`
	TemperatureFahrenheit *float64 `json:"current_temperature_fahrenheit,omitempty"`
	Condition             string   `json:"weather_condition,omitempty"`
	Humidity              *int     `json:"humidity,omitempty"`
	WindSpeedKph          *float64 `json:"wind_speed_kph,omitempty"`
	APISuccess            bool     `json:"api_success"`
	APIError              string   `json:"api_error,omitempty"`
	DataSource            string   `json:"data_source"`
	Timestamp             string   `json:"timestamp"`
}

// Validate enforces [-100,60]°C, [-148,140]°F and [0,100]% humidity.
func (w WeatherResult) Validate() error {
	if c := w.TemperatureCelsius; c != nil && (*c < -100 || *c > 60) {
		return fmt.Errorf("%w: temperature in Celsius must be between -100 and 60, got %v", ErrInvalidWeatherResult, *c)
	}
	if f := w.TemperatureFahrenheit; f != nil && (*f < -148 || *f > 140) {
		return fmt.Errorf("%w: temperature in Fahrenheit must be between -148 and 140, got %v", ErrInvalidWeatherResult, *f)
	}
	if h := w.Humidity; h != nil && (*h < 0 || *h > 100) {
		return fmt.Errorf("%w: humidity must be between 0 and 100, got %d", ErrInvalidWeatherResult, *h)
	}
	return nil
}

// HasTemperatureData reports whether a Celsius reading is present.
func (w WeatherResult) HasTemperatureData() bool {
	return w.TemperatureCelsius != nil
}

// TemperatureDisplay formats the reading for unit "celsius", "fahrenheit" or anything else for both.
func (w WeatherResult) TemperatureDisplay(unit string) string {
	return temperatureDisplay(w.TemperatureCelsius, w.TemperatureFahrenheit, unit)
}

// FormatTemperature renders a reading with at least one decimal place (15 -> "15.0").
func FormatTemperature(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

func temperatureDisplay(c, f *float64, unit string) string {
	if c == nil {
		return "Temperature data unavailable"
	}
	fahrenheit := "unknown"
	if f != nil {
		fahrenheit = FormatTemperature(*f)
	}
	switch strings.ToLower(unit) {
	case "celsius":
		return FormatTemperature(*c) + "°C"
	case "fahrenheit":
		return fahrenheit + "°F"
	default:
		return FormatTemperature(*c) + "°C (" + fahrenheit + "°F)"
	}
}
