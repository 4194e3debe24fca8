package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/ambient-temp-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate for the serve surface.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Dominated by the generation call on /ambient routes.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limit denials (429).
	RateLimitDeniedTotal prometheus.Counter

	// Pipeline runs by outcome: success, weather_unavailable, not_found, resolution_failed, no_location.
	PipelineRequestsTotal *prometheus.CounterVec

	// Location resolutions by mode (extract|infer) and whether a conflict was detected.
	LocationResolutionsTotal *prometheus.CounterVec

	// Generation service calls by provider and status. Watch for: parse errors after model upgrades.
	LLMCallsTotal *prometheus.CounterVec

	// Generation service latency. Expect seconds, not milliseconds.
	LLMDuration *prometheus.HistogramVec

	// WeatherAPI.com call rate by status.
	WeatherAPICallsTotal *prometheus.CounterVec

	// WeatherAPI.com latency. Watch for: p99 near the 10s client timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Weather fetch failures by client.ErrorCategory.
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	pipelineGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipelineRequestsTotal",
			Help: "Ambient temperature pipeline runs by outcome",
		},
		[]string{"outcome"},
	)
	LocationResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationResolutionsTotal",
			Help: "Location resolutions by mode and conflict flag",
		},
		[]string{"mode", "conflict"},
	)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmCallsTotal",
			Help: "Total number of text-generation calls",
		},
		[]string{"provider", "status"},
	)
	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmDurationSeconds",
			Help:    "Text-generation latency in seconds (per call)",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of WeatherAPI.com calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "WeatherAPI.com latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Weather fetch failures by error category",
		},
		[]string{"category"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RateLimitDeniedTotal,
		PipelineRequestsTotal, LocationResolutionsTotal,
		LLMCallsTotal, LLMDuration,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		CircuitBreakerState,
	)
}

// RegisterPipelineGauges registers windowed pipeline outcome gauges backed by the traffic tracker.
// Call from main after config load with the health window.
func RegisterPipelineGauges(window time.Duration) {
	pipelineGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "pipelineRequestsInWindow",
					Help: "Pipeline runs in the health window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "pipelineFailuresInWindow",
					Help: "Failed pipeline runs in the health window",
				},
				func() float64 {
					failed, _ := traffic.ErrorRate(window)
					return float64(failed)
				},
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
