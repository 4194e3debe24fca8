package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

// WeatherClient fetches current conditions for a free-text location.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, location string) (CurrentResponse, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// WeatherAPI.com error codes that change how a 4xx is classified.
const (
	codeNoMatchingLocation = 1006
	codeQuotaExceeded      = 2007
)

// CurrentResponse is the current.json payload.
type CurrentResponse struct {
	Location struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current *CurrentConditions `json:"current"`
}

// CurrentConditions holds the current block. Pointer fields distinguish absent values from zero.
type CurrentConditions struct {
	LastUpdated string     `json:"last_updated"`
	TempC       *float64   `json:"temp_c"`
	TempF       *float64   `json:"temp_f"`
	Humidity    *int       `json:"humidity"`
	WindKph     *float64   `json:"wind_kph"`
	Condition   *Condition `json:"condition"`
}

type Condition struct {
	Text string `json:"text"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WeatherAPIClient calls the WeatherAPI.com current conditions endpoint. Each call is a
// single attempt bounded by timeout.
type WeatherAPIClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewWeatherAPIClient validates the key shape and returns a client for apiURL
// (e.g. http://api.weatherapi.com/v1).
func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		apiURL:  strings.TrimRight(apiURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetCurrentWeather issues GET {apiURL}/current.json?key=..&q=location&aqi=no.
func (c *WeatherAPIClient) GetCurrentWeather(ctx context.Context, location string) (CurrentResponse, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return CurrentResponse{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isTimeout(err) {
			return CurrentResponse{}, fmt.Errorf("request timeout: %w", err)
		}
		return CurrentResponse{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CurrentResponse{}, fmt.Errorf("read response body: %w", err)
	}

	if err := handleErrorResponse(resp.StatusCode, body); err != nil {
		return CurrentResponse{}, err
	}

	var apiResp CurrentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return CurrentResponse{}, fmt.Errorf("parse response: %w", err)
	}
	return apiResp, nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL + "/current.json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)
	params.Set("aqi", "no")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps non-2xx statuses, and WeatherAPI.com error codes in the body, to sentinels.
func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiErrorBody
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, msg)
	case statusCode == http.StatusForbidden && apiErr.Error.Code == codeQuotaExceeded:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, msg)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case statusCode == http.StatusNotFound,
		statusCode == http.StatusBadRequest && apiErr.Error.Code == codeNoMatchingLocation:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, statusCode, msg)
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// keyCheckLocation is a query WeatherAPI.com always resolves.
const keyCheckLocation = "London"

// ValidateAPIKey makes one current-conditions lookup for keyCheckLocation, bounded by the
// client timeout. Failures use the same sentinels as GetCurrentWeather, so a rejected key
// is ErrInvalidAPIKey and an exhausted quota is ErrRateLimited.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, keyCheckLocation)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isTimeout(err) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("key check request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return handleErrorResponse(resp.StatusCode, body)
}
