// Package llm talks to text-generation services and turns their structured output into
// location results.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

var (
	// ErrParse is returned when generated output does not match the requested schema.
	ErrParse = errors.New("could not parse generated output")
	// ErrNoCompletion is returned when the service answers without any content.
	ErrNoCompletion = errors.New("generation service returned no completion")
	// ErrProviderNotConfigured is returned when no provider has usable credentials.
	ErrProviderNotConfigured = errors.New("generation provider not configured")
)

// Request is a single schema-guided completion.
type Request struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      map[string]any
	Temperature float64
}

// Completer returns raw JSON text produced under Request.Schema.
type Completer interface {
	CompleteJSON(ctx context.Context, req Request) (string, error)
	Provider() string
}

// observe records one call's outcome for provider.
func observe(provider string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = "timeout"
	case errors.Is(err, ErrNoCompletion):
		status = "empty"
	default:
		status = "error"
	}
	observability.LLMCallsTotal.WithLabelValues(provider, status).Inc()
	observability.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
