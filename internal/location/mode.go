package location

import "github.com/kjstillabower/ambient-temp-service/internal/models"

// Mode selects how a location is derived from metadata.
type Mode int

const (
	// ModeExtract reads the location from direct address fields.
	ModeExtract Mode = iota
	// ModeInfer reasons from organizational names when no address fields exist.
	ModeInfer
)

func (m Mode) String() string {
	switch m {
	case ModeExtract:
		return "extract"
	case ModeInfer:
		return "infer"
	default:
		return "unknown"
	}
}

// SelectMode returns ModeExtract when any direct address field is present.
func SelectMode(md models.EquipmentMetadata) Mode {
	if md.HasDirectAddress() {
		return ModeExtract
	}
	return ModeInfer
}
