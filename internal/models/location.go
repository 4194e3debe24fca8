package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidLocationResult is returned when a LocationResult violates its invariants.
var ErrInvalidLocationResult = errors.New("invalid location result")

// High and low confidence boundaries used for reporting.
const (
	HighConfidenceThreshold       = 0.7
	DefaultLowConfidenceThreshold = 0.3
)

// LocationResult is the outcome of resolving where a piece of equipment is.
// Location is empty when no location could be determined.
type LocationResult struct {
	Location        string  `json:"location"`
	Evidence        string  `json:"evidence"`
	Confidence      float64 `json:"confidence"`
	Street          string  `json:"street,omitempty"`
	City            string  `json:"city,omitempty"`
	State           string  `json:"state,omitempty"`
	Country         string  `json:"country,omitempty"`
	HasConflict     bool    `json:"has_location_conflict"`
	ConflictDetails string  `json:"conflict_details,omitempty"`
}

// NewLocationResult builds a LocationResult and enforces its invariants.
func NewLocationResult(location, evidence string, confidence float64) (LocationResult, error) {
	r := LocationResult{
		Location:   strings.TrimSpace(location),
		Evidence:   evidence,
		Confidence: confidence,
	}
	if err := r.Validate(); err != nil {
		return LocationResult{}, err
	}
	return r, nil
}

// Validate checks that confidence is within [0,1] and that confidence above 0.5
// is backed by a location.
func (r LocationResult) Validate() error {
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0.0 and 1.0, got %v", ErrInvalidLocationResult, r.Confidence)
	}
	if !r.HasLocation() && r.Confidence > 0.5 {
		return fmt.Errorf("%w: high confidence requires a location value", ErrInvalidLocationResult)
	}
	return nil
}

// HasLocation reports whether a location was determined.
func (r LocationResult) HasLocation() bool {
	return strings.TrimSpace(r.Location) != ""
}

// IsHighConfidence reports confidence >= 0.7.
func (r LocationResult) IsHighConfidence() bool {
	return r.Confidence >= HighConfidenceThreshold
}

// IsLowConfidence reports confidence below threshold; a non-positive threshold uses 0.3.
func (r LocationResult) IsLowConfidence(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultLowConfidenceThreshold
	}
	return r.Confidence < threshold
}

// FormattedLocation returns the location, or the structured parts, or "Location unknown".
func (r LocationResult) FormattedLocation() string {
	if r.HasLocation() {
		return r.Location
	}
	var parts []string
	for _, p := range []string{r.City, r.State, r.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return "Location unknown"
}
