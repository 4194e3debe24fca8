package location

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

const extractSystem = "You are a location extraction expert for industrial equipment. " +
	"Respond only with JSON matching the requested schema."

const inferSystem = "You are a location inference expert for industrial equipment. " +
	"Respond only with JSON matching the requested schema."

// SystemPrompt returns the system instruction for mode.
func SystemPrompt(mode Mode) string {
	if mode == ModeInfer {
		return inferSystem
	}
	return extractSystem
}

// BuildPrompt renders the user prompt for mode from the equipment metadata.
func BuildPrompt(mode Mode, equipmentID string, md models.EquipmentMetadata) string {
	var b strings.Builder
	switch mode {
	case ModeInfer:
		b.WriteString("The industrial equipment metadata below lacks direct address information, ")
		b.WriteString("but contains company, facility and organizational data that may help infer the location.\n\n")
	default:
		b.WriteString("Analyze the industrial equipment metadata below and extract its location.\n\n")
	}

	fmt.Fprintf(&b, "Equipment ID: %s\n", equipmentID)
	fmt.Fprintf(&b, "Metadata:\n%s\n\n", metadataJSON(md))

	switch mode {
	case ModeInfer:
		b.WriteString("Infer the equipment location from:\n")
		b.WriteString("- Company name and known company locations\n")
		b.WriteString("- Facility or branch names that indicate geographic areas\n")
		b.WriteString("- Building, region or organizational hierarchy information\n\n")
		b.WriteString("IMPORTANT:\n")
		b.WriteString("- Use confidence between 0.1 and 0.5 since this is inference, not direct data\n")
		b.WriteString("- State in the evidence that the location is inferred, not taken from direct metadata\n")
		b.WriteString("- If no reasonable inference is possible, set location to null and explain why\n")
	default:
		b.WriteString("Direct address data is available, so extract the location with high confidence.\n")
		b.WriteString("Focus on the address fields, building information and geographic data.\n")
		b.WriteString("Return location as \"City, State, Country\" where those parts are known.\n")
	}
	return b.String()
}

func metadataJSON(md models.EquipmentMetadata) string {
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return md.LocationSummary()
	}
	return string(b)
}
