// Package service sequences the ambient temperature pipeline for one equipment identifier.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/compose"
	"github.com/kjstillabower/ambient-temp-service/internal/equipment"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/observability"
	"github.com/kjstillabower/ambient-temp-service/internal/traffic"
)

// User-facing messages for failures that stop the pipeline.
const (
	MsgNoMetadata = "No metadata found for equipment"
	MsgNoLocation = "Could not determine equipment location"
)

// Outcome labels for pipelineRequestsTotal.
const (
	outcomeSuccess     = "success"
	outcomeNoWeather   = "no_weather"
	outcomeNotFound    = "not_found"
	outcomeUnresolved  = "unresolved"
	outcomeNoLocation  = "no_location"
	outcomeLookupError = "lookup_error"
)

// MetadataStore looks up equipment metadata.
type MetadataStore interface {
	Lookup(equipmentID string) (models.EquipmentMetadata, error)
}

// LocationResolver resolves metadata into a location.
type LocationResolver interface {
	Resolve(ctx context.Context, equipmentID string, md models.EquipmentMetadata) (models.LocationResult, error)
}

// WeatherFetcher returns current weather for a location. It reports failures inside the result.
type WeatherFetcher interface {
	Fetch(ctx context.Context, loc models.LocationResult) models.WeatherResult
}

// AmbientService runs lookup, resolution, weather retrieval and composition in order.
// It holds no per-request state and is safe for concurrent use when its collaborators are.
type AmbientService struct {
	store    MetadataStore
	resolver LocationResolver
	weather  WeatherFetcher
	logger   *zap.Logger
}

// NewAmbientService creates an AmbientService with the provided dependencies.
func NewAmbientService(store MetadataStore, resolver LocationResolver, weather WeatherFetcher, logger *zap.Logger) *AmbientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmbientService{store: store, resolver: resolver, weather: weather, logger: logger}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetAmbientTemperature never returns an error; every stage failure becomes an error
// response that keeps whatever location was resolved before the failure.
func (s *AmbientService) GetAmbientTemperature(ctx context.Context, equipmentID string) models.FinalResponse {
	start := time.Now()
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	logger = logger.With(zap.String("equipment_id", equipmentID))
	logger.Info("starting ambient temperature analysis")

	md, err := s.store.Lookup(equipmentID)
	if err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			logger.Warn("no metadata found")
			return s.finish(logger, start, outcomeNotFound, compose.Error(equipmentID, MsgNoMetadata, nil))
		}
		logger.Error("metadata lookup failed", zap.Error(err))
		return s.finish(logger, start, outcomeLookupError, compose.Error(equipmentID, err.Error(), nil))
	}

	loc, err := s.resolver.Resolve(ctx, equipmentID, md)
	if err != nil {
		logger.Error("ambient temperature analysis failed", zap.Error(err))
		return s.finish(logger, start, outcomeUnresolved, compose.Error(equipmentID, err.Error(), nil))
	}

	if !loc.HasLocation() {
		logger.Warn("location could not be determined", zap.String("evidence", loc.Evidence))
		return s.finish(logger, start, outcomeNoLocation, compose.Error(equipmentID, MsgNoLocation, &loc))
	}

	w := s.weather.Fetch(ctx, loc)

	outcome := outcomeSuccess
	if !w.APISuccess || !w.HasTemperatureData() {
		outcome = outcomeNoWeather
	}
	return s.finish(logger, start, outcome, compose.Success(equipmentID, loc, w))
}

func (s *AmbientService) finish(logger *zap.Logger, start time.Time, outcome string, resp models.FinalResponse) models.FinalResponse {
	observability.PipelineRequestsTotal.WithLabelValues(outcome).Inc()
	// Unknown equipment and unlocatable metadata are answers, not service faults.
	switch outcome {
	case outcomeUnresolved, outcomeLookupError:
		traffic.RecordError()
	default:
		traffic.RecordSuccess()
	}
	logger.Info("ambient temperature analysis completed",
		zap.String("outcome", outcome),
		zap.String("location", resp.Location),
		zap.Bool("weather_api_success", resp.WeatherAPISuccess),
		zap.Duration("duration", time.Since(start)),
	)
	return resp
}
