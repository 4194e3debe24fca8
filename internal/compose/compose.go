// Package compose builds the user-facing FinalResponse.
package compose

import (
	"fmt"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

// UnknownLocation is reported when an error response carries no resolved location.
const UnknownLocation = "unknown location"

// Success combines a resolved location and a weather lookup. The sentence reports the
// Celsius reading when one is present and says it is unavailable otherwise.
func Success(equipmentID string, loc models.LocationResult, w models.WeatherResult) models.FinalResponse {
	var sentence string
	if w.HasTemperatureData() {
		sentence = fmt.Sprintf("Industrial equipment %s is located in %s and the temperature in this location is %s°C",
			equipmentID, loc.Location, models.FormatTemperature(*w.TemperatureCelsius))
	} else {
		sentence = fmt.Sprintf("Industrial equipment %s is located in %s but the temperature in this location is unavailable",
			equipmentID, loc.Location)
	}

	return models.FinalResponse{
		EquipmentID:           equipmentID,
		Location:              loc.Location,
		TemperatureCelsius:    w.TemperatureCelsius,
		TemperatureFahrenheit: w.TemperatureFahrenheit,
		WeatherCondition:      w.Condition,
		FormattedResponse:     sentence,
		LocationConfidence:    loc.Confidence,
		LocationHasConflict:   loc.HasConflict,
		ConflictDetails:       loc.ConflictDetails,
		WeatherAPISuccess:     w.APISuccess,
		WeatherAPIError:       w.APIError,
		Timestamp:             w.Timestamp,
	}
}

// Error builds the failure response. loc may be nil; whatever it carries is preserved.
func Error(equipmentID, message string, loc *models.LocationResult) models.FinalResponse {
	resp := models.FinalResponse{
		EquipmentID:       equipmentID,
		Location:          UnknownLocation,
		FormattedResponse: fmt.Sprintf("Industrial equipment %s could not be processed: %s", equipmentID, message),
		WeatherAPISuccess: false,
		ErrorMessage:      message,
	}
	if loc != nil {
		if loc.HasLocation() {
			resp.Location = loc.Location
		}
		resp.LocationConfidence = loc.Confidence
		resp.LocationHasConflict = loc.HasConflict
		resp.ConflictDetails = loc.ConflictDetails
	}
	return resp
}
