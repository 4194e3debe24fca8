// Package weather turns a resolved location into a WeatherResult.
package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/client"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

// MinConfidence is the lowest location confidence a lookup is attempted for.
// It is independent of the resolver's low-confidence warning threshold.
const MinConfidence = 0.1

// DataSource labels every WeatherResult produced here.
const DataSource = "WeatherAPI.com"

// Fetch stages.
const (
	StageValidate = "validate"
	StageFetch    = "fetch"
	StageProcess  = "process"
)

var (
	ErrNoLocation        = errors.New("No location available for weather retrieval")
	ErrLowConfidence     = errors.New("Location confidence too low for weather retrieval")
	ErrMissingConditions = errors.New("response missing current conditions")
)

// FetchError describes a failed stage. It never escapes Fetch; its message becomes
// WeatherResult.APIError.
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	switch e.Stage {
	case StageFetch:
		return fmt.Sprintf("Weather API request failed: %v", e.Err)
	case StageProcess:
		return fmt.Sprintf("Failed to process weather data: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher runs Validate, Fetch and Process for one location.
type Fetcher struct {
	provider client.WeatherClient
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewFetcher returns a Fetcher. A nil clock uses the real clock.
func NewFetcher(provider client.WeatherClient, clock clockwork.Clock, logger *zap.Logger) *Fetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{provider: provider, clock: clock, logger: logger}
}

// Fetch never fails: every error path yields APISuccess=false with APIError set.
func (f *Fetcher) Fetch(ctx context.Context, loc models.LocationResult) models.WeatherResult {
	log := f.logger.With(zap.String("location", loc.Location))
	log.Info("starting weather retrieval")

	result, err := f.run(ctx, loc)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Stage != StageValidate {
			observability.WeatherAPIErrorsTotal.WithLabelValues(string(client.CategorizeError(fe.Err))).Inc()
		}
		log.Error("weather retrieval failed", zap.Error(err))
		return models.WeatherResult{
			LocationUsed: loc.Location,
			APISuccess:   false,
			APIError:     err.Error(),
			DataSource:   DataSource,
			Timestamp:    f.now(),
		}
	}

	log.Info("weather retrieval completed",
		zap.String("temperature", result.TemperatureDisplay("celsius")),
		zap.String("condition", result.Condition),
	)
	return result
}

func (f *Fetcher) run(ctx context.Context, loc models.LocationResult) (models.WeatherResult, error) {
	if err := validate(loc); err != nil {
		return models.WeatherResult{}, &FetchError{Stage: StageValidate, Err: err}
	}

	resp, err := f.provider.GetCurrentWeather(ctx, loc.Location)
	if err != nil {
		return models.WeatherResult{}, &FetchError{Stage: StageFetch, Err: err}
	}

	result, err := f.process(loc.Location, resp)
	if err != nil {
		return models.WeatherResult{}, &FetchError{Stage: StageProcess, Err: err}
	}
	return result, nil
}

func validate(loc models.LocationResult) error {
	if !loc.HasLocation() {
		return ErrNoLocation
	}
	if loc.Confidence < MinConfidence {
		return fmt.Errorf("%w: %v", ErrLowConfidence, loc.Confidence)
	}
	return nil
}

// process copies current conditions into a WeatherResult and range-checks them.
// A payload without a temperature still succeeds; the reading is reported as unavailable.
func (f *Fetcher) process(location string, resp client.CurrentResponse) (models.WeatherResult, error) {
	cur := resp.Current
	if cur == nil {
		return models.WeatherResult{}, ErrMissingConditions
	}

	result := models.WeatherResult{
		LocationUsed:          location,
		TemperatureCelsius:    cur.TempC,
		TemperatureFahrenheit: cur.TempF,
		Humidity:              cur.Humidity,
		WindSpeedKph:          cur.WindKph,
		APISuccess:            true,
		DataSource:            DataSource,
		Timestamp:             f.now(),
	}
	if cur.Condition != nil {
		result.Condition = cur.Condition.Text
	}
	if err := result.Validate(); err != nil {
		return models.WeatherResult{}, err
	}
	return result, nil
}

func (f *Fetcher) now() string {
	return f.clock.Now().Format(time.RFC3339)
}
