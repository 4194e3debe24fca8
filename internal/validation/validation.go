package validation

import (
	"errors"
	"strings"
)

// Length bounds for equipment identifiers.
const (
	MinEquipmentIDLen = 1
	MaxEquipmentIDLen = 64
)

// ErrEquipmentIDEmpty is returned when the identifier is empty or whitespace-only after trim.
var ErrEquipmentIDEmpty = errors.New("equipment ID is required")

// ErrEquipmentIDTooLong is returned when the identifier exceeds MaxEquipmentIDLen.
var ErrEquipmentIDTooLong = errors.New("equipment ID too long")

// ErrEquipmentIDInvalidChars is returned when the identifier contains disallowed characters.
var ErrEquipmentIDInvalidChars = errors.New("equipment ID contains invalid characters")

// ValidateEquipmentID trims the input, enforces length bounds and restricts it to ASCII
// letters, digits, underscore and hyphen. Returns the trimmed identifier or an error
// suitable for 400 INVALID_EQUIPMENT_ID responses and CLI usage errors.
// Case is preserved; dataset lookups are exact.
func ValidateEquipmentID(input string) (string, error) {
	s := strings.TrimSpace(input)
	n := len(s)
	if n < MinEquipmentIDLen {
		return "", ErrEquipmentIDEmpty
	}
	if n > MaxEquipmentIDLen {
		return "", ErrEquipmentIDTooLong
	}
	for i := 0; i < n; i++ {
		if !isAllowedIDByte(s[i]) {
			return "", ErrEquipmentIDInvalidChars
		}
	}
	return s, nil
}

func isAllowedIDByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	}
	return false
}
