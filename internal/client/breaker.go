package client

import (
	"context"
	"errors"

	"github.com/kjstillabower/ambient-temp-service/internal/circuitbreaker"
)

// BreakerClient guards a WeatherClient with a circuit breaker.
type BreakerClient struct {
	inner WeatherClient
	cb    *circuitbreaker.CircuitBreaker
}

// NewBreakerClient wraps inner. Only upstream-health failures (timeouts, network, 5xx,
// rate limiting) count against the breaker; unknown locations and bad keys do not.
func NewBreakerClient(inner WeatherClient, cb *circuitbreaker.CircuitBreaker) *BreakerClient {
	return &BreakerClient{inner: inner, cb: cb}
}

// CountsAsFailure reports whether err reflects upstream health.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLocationNotFound) || errors.Is(err, ErrInvalidAPIKey) {
		return false
	}
	return true
}

func (b *BreakerClient) GetCurrentWeather(ctx context.Context, location string) (CurrentResponse, error) {
	var out CurrentResponse
	err := b.cb.Call(ctx, func() error {
		var err error
		out, err = b.inner.GetCurrentWeather(ctx, location)
		return err
	})
	return out, err
}

func (b *BreakerClient) ValidateAPIKey(ctx context.Context) error {
	return b.inner.ValidateAPIKey(ctx)
}
