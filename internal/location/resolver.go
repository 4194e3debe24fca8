// Package location resolves where a piece of equipment is from its metadata.
package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

// Confidence bounds applied to inferred locations.
const (
	InferMinConfidence = 0.1
	InferMaxConfidence = 0.5
)

var (
	ErrNoMetadata       = errors.New("no metadata provided")
	ErrNoLocationFields = errors.New("no location information available in metadata")
)

// Resolution stages reported in ResolutionError.
const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StageInfer    = "infer"
)

// ResolutionError reports why a location could not be resolved.
type ResolutionError struct {
	EquipmentID string
	Stage       string
	Err         error
}

func (e *ResolutionError) Error() string {
	switch e.Stage {
	case StageExtract:
		return fmt.Sprintf("location extraction failed: %v", e.Err)
	case StageInfer:
		return fmt.Sprintf("location inference failed: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Generator produces a LocationResult from a system instruction and prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (models.LocationResult, error)
}

// Resolver turns equipment metadata into a LocationResult.
type Resolver struct {
	gen           Generator
	lowConfidence float64
	logger        *zap.Logger
}

// NewResolver returns a Resolver. lowConfidence only affects logging; a non-positive
// value uses models.DefaultLowConfidenceThreshold.
func NewResolver(gen Generator, lowConfidence float64, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lowConfidence <= 0 {
		lowConfidence = models.DefaultLowConfidenceThreshold
	}
	return &Resolver{gen: gen, lowConfidence: lowConfidence, logger: logger}
}

// Validate fails when metadata is empty or carries none of the location fields.
func Validate(md models.EquipmentMetadata) error {
	if md.IsEmpty() {
		return ErrNoMetadata
	}
	if len(md.AvailableLocationFields()) == 0 {
		return ErrNoLocationFields
	}
	return nil
}

// Resolve validates md, selects a mode, runs conflict detection and asks the generator
// for a location. Conflict fields are attached to the returned result.
func (r *Resolver) Resolve(ctx context.Context, equipmentID string, md models.EquipmentMetadata) (models.LocationResult, error) {
	log := r.logger.With(zap.String("equipment_id", equipmentID))

	if err := Validate(md); err != nil {
		log.Warn("metadata validation failed", zap.Error(err))
		return models.LocationResult{}, &ResolutionError{EquipmentID: equipmentID, Stage: StageValidate, Err: err}
	}

	mode := SelectMode(md)
	log.Info("starting location analysis",
		zap.String("mode", mode.String()),
		zap.Strings("fields", md.AvailableLocationFields()),
	)

	hasConflict, details := DetectConflicts(md)
	if hasConflict {
		log.Warn("location conflict detected", zap.String("conflicts", details))
	}

	result, err := r.gen.Generate(ctx, SystemPrompt(mode), BuildPrompt(mode, equipmentID, md))
	if err != nil {
		log.Error("location generation failed", zap.String("mode", mode.String()), zap.Error(err))
		return models.LocationResult{}, &ResolutionError{EquipmentID: equipmentID, Stage: mode.String(), Err: err}
	}

	if mode == ModeInfer {
		result = boundInference(result)
	}
	result.HasConflict = hasConflict
	result.ConflictDetails = details

	observability.LocationResolutionsTotal.WithLabelValues(mode.String(), strconv.FormatBool(hasConflict)).Inc()

	fields := []zap.Field{
		zap.String("mode", mode.String()),
		zap.String("location", result.Location),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("has_conflict", hasConflict),
	}
	if mode == ModeInfer {
		log.Info("location inferred", fields...)
	} else {
		log.Info("location extracted", fields...)
	}
	if result.IsLowConfidence(r.lowConfidence) {
		log.Warn("low confidence location", zap.Float64("confidence", result.Confidence), zap.Float64("threshold", r.lowConfidence))
	}
	return result, nil
}

// boundInference clamps an inferred location's confidence to [0.1, 0.5] and marks its
// evidence as inferred.
func boundInference(res models.LocationResult) models.LocationResult {
	if !res.HasLocation() {
		return res
	}
	if res.Confidence < InferMinConfidence {
		res.Confidence = InferMinConfidence
	}
	if res.Confidence > InferMaxConfidence {
		res.Confidence = InferMaxConfidence
	}
	if !strings.Contains(strings.ToLower(res.Evidence), "infer") {
		res.Evidence = "Inferred: " + res.Evidence
	}
	return res
}
