package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

// locationSchemaName names the response format sent to OpenAI-compatible services.
const locationSchemaName = "location_result"

// LocationSchema is the JSON schema of a generated location. Every property is required
// and nullable so that strict response formats accept it.
func LocationSchema() map[string]any {
	nullableString := func(desc string) map[string]any {
		return map[string]any{"type": []any{"string", "null"}, "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location":   nullableString("Most specific location usable for a weather lookup, e.g. \"New York, NY, USA\"; null if unknown"),
			"evidence":   map[string]any{"type": "string", "description": "Reasoning and metadata fields used"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0, "description": "Confidence score between 0.0 and 1.0"},
			"street":     nullableString("Street address if available"),
			"city":       nullableString("City name"),
			"state":      nullableString("State or province"),
			"country":    nullableString("Country"),
		},
		"required":             []any{"location", "evidence", "confidence", "street", "city", "state", "country"},
		"additionalProperties": false,
	}
}

type generatedLocation struct {
	Location   *string  `json:"location"`
	Evidence   string   `json:"evidence"`
	Confidence *float64 `json:"confidence"`
	Street     *string  `json:"street"`
	City       *string  `json:"city"`
	State      *string  `json:"state"`
	Country    *string  `json:"country"`
}

// LocationGenerator turns prompts into validated LocationResults via a Completer.
type LocationGenerator struct {
	completer   Completer
	temperature float64
	logger      *zap.Logger
}

// NewLocationGenerator wraps c. temperature is the decoding temperature, normally 0.
func NewLocationGenerator(c Completer, temperature float64, logger *zap.Logger) *LocationGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationGenerator{completer: c, temperature: temperature, logger: logger}
}

// Generate asks for a location under LocationSchema and parses the answer. Output that
// is not JSON, lacks a confidence, or violates LocationResult invariants yields ErrParse.
func (g *LocationGenerator) Generate(ctx context.Context, system, prompt string) (models.LocationResult, error) {
	raw, err := g.completer.CompleteJSON(ctx, Request{
		System:      system,
		Prompt:      prompt,
		SchemaName:  locationSchemaName,
		Schema:      LocationSchema(),
		Temperature: g.temperature,
	})
	if err != nil {
		return models.LocationResult{}, err
	}

	result, err := ParseLocation(raw)
	if err != nil {
		g.logger.Debug("unparseable generation output",
			zap.String("provider", g.completer.Provider()),
			zap.String("output", truncate(raw, 500)),
		)
		return models.LocationResult{}, err
	}
	return result, nil
}

// ParseLocation decodes generated JSON, tolerating surrounding markdown code fences.
func ParseLocation(raw string) (models.LocationResult, error) {
	var gl generatedLocation
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &gl); err != nil {
		return models.LocationResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if gl.Confidence == nil {
		return models.LocationResult{}, fmt.Errorf("%w: confidence is missing", ErrParse)
	}

	result, err := models.NewLocationResult(deref(gl.Location), gl.Evidence, *gl.Confidence)
	if err != nil {
		return models.LocationResult{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	result.Street = deref(gl.Street)
	result.City = deref(gl.City)
	result.State = deref(gl.State)
	result.Country = deref(gl.Country)
	return result, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
