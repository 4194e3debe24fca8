package location

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

// minFacilityCityLen skips address checks for short facility prefixes such as "NYC".
// Measured in characters.
const minFacilityCityLen = 3

// DetectConflicts compares physical address fields with a facility name written as
// "City, State". It returns whether any mismatch was found and the mismatches joined by "; ".
func DetectConflicts(md models.EquipmentMetadata) (bool, string) {
	facility := md.Field(models.FieldFacilityName)
	if !strings.Contains(facility, ",") {
		return false, ""
	}
	parts := strings.Split(facility, ",")
	facilityCity := strings.TrimSpace(parts[0])
	facilityState := strings.TrimSpace(parts[1])

	var conflicts []string

	if city := md.Field(models.FieldAddressCity); city != "" && !strings.EqualFold(facilityCity, city) {
		conflicts = append(conflicts, fmt.Sprintf("Physical city '%s' vs facility city '%s'", city, facilityCity))
	}

	if state := md.Field(models.FieldAddressState); state != "" && !strings.EqualFold(facilityState, state) {
		conflicts = append(conflicts, fmt.Sprintf("Physical state '%s' vs facility state '%s'", state, facilityState))
	}

	if addr := md.Field(models.FieldAddressFormatted); addr != "" && facilityCity != "" &&
		utf8.RuneCountInString(facilityCity) > minFacilityCityLen &&
		!strings.Contains(strings.ToLower(addr), strings.ToLower(facilityCity)) {
		conflicts = append(conflicts, fmt.Sprintf("Address location vs facility location: '%s' not found in address", facilityCity))
	}

	if len(conflicts) == 0 {
		return false, ""
	}
	return true, strings.Join(conflicts, "; ")
}
