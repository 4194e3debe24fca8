package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kjstillabower/ambient-temp-service/internal/equipment"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

var rule = strings.Repeat("=", 80)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// writeReport prints the result block for one run.
func writeReport(w io.Writer, r models.FinalResponse) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "AMBIENT TEMPERATURE RESULTS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Equipment ID: %s\n", r.EquipmentID)
	fmt.Fprintf(w, "Location: %s\n", r.Location)
	fmt.Fprintf(w, "Location Confidence: %.2f\n", r.LocationConfidence)
	fmt.Fprintf(w, "Location Conflicts: %s\n", yesNo(r.LocationHasConflict))
	if r.LocationHasConflict && r.ConflictDetails != "" {
		fmt.Fprintf(w, "Conflict Details: %s\n", r.ConflictDetails)
	}
	fmt.Fprintf(w, "Weather API Success: %s\n", yesNo(r.WeatherAPISuccess))

	if r.HasTemperatureData() {
		fmt.Fprintf(w, "Temperature: %s\n", r.TemperatureDisplay("both"))
		if r.WeatherCondition != "" {
			fmt.Fprintf(w, "Weather Condition: %s\n", r.WeatherCondition)
		}
		if r.Timestamp != "" {
			fmt.Fprintf(w, "Retrieved At: %s\n", r.Timestamp)
		}
	}
	if r.WeatherAPIError != "" {
		fmt.Fprintf(w, "Weather Error: %s\n", r.WeatherAPIError)
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", r.ErrorMessage)
	}

	fmt.Fprintln(w, "\nFormatted Response:")
	fmt.Fprintf(w, "\"%s\"\n", r.FormattedResponse)
	fmt.Fprintln(w, rule)
}

// writeEquipmentList prints every known equipment summary and an example invocation.
func writeEquipmentList(w io.Writer, store *equipment.Store) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "AVAILABLE EQUIPMENT")
	fmt.Fprintln(w, rule)

	ids := store.List()
	if len(ids) == 0 {
		fmt.Fprintln(w, "No equipment found in database.")
		fmt.Fprintln(w, rule)
		return
	}

	fmt.Fprintf(w, "Found %d pieces of equipment:\n\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", store.Info(id))
	}
	fmt.Fprintln(w, "\nExample usage:")
	fmt.Fprintf(w, "  ambienttemp run %s\n", ids[0])
	fmt.Fprintln(w, rule)
}
