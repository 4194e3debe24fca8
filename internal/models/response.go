package models

// FinalResponse is the user-facing result of one ambient temperature request.
type FinalResponse struct {
	EquipmentID           string   `json:"equipment_id"`
	Location              string   `json:"location"`
	TemperatureCelsius    *float64 `json:"temperature_celsius"`
	TemperatureFahrenheit *float64 `json:"temperature_fahrenheit"`
	WeatherCondition      string   `json:"weather_condition,omitempty"`
	FormattedResponse     string   `json:"formatted_response"`
	LocationConfidence    float64  `json:"location_confidence"`
	LocationHasConflict   bool     `json:"location_has_conflict"`
	ConflictDetails       string   `json:"conflict_details,omitempty"`
	WeatherAPISuccess     bool     `json:"weather_api_success"`
	WeatherAPIError       string   `json:"weather_api_error,omitempty"`
	ErrorMessage          string   `json:"error_message,omitempty"`
	Timestamp             string   `json:"timestamp,omitempty"`
}

// HasTemperatureData reports whether a Celsius reading is present.
func (r FinalResponse) HasTemperatureData() bool {
	return r.TemperatureCelsius != nil
}

// TemperatureDisplay formats the reading; see WeatherResult.TemperatureDisplay.
func (r FinalResponse) TemperatureDisplay(unit string) string {
	return temperatureDisplay(r.TemperatureCelsius, r.TemperatureFahrenheit, unit)
}

// IsError reports whether the response was built on the error path.
func (r FinalResponse) IsError() bool {
	return r.ErrorMessage != ""
}
