package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/ambient-temp-service/internal/client"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

type fakeProvider struct {
	resp  client.CurrentResponse
	err   error
	calls int
	last  string
}

func (p *fakeProvider) GetCurrentWeather(_ context.Context, location string) (client.CurrentResponse, error) {
	p.calls++
	p.last = location
	return p.resp, p.err
}

func (p *fakeProvider) ValidateAPIKey(context.Context) error { return nil }

func ptr[T any](v T) *T { return &v }

func current(tempC, tempF *float64, humidity *int, condition string) client.CurrentResponse {
	var resp client.CurrentResponse
	resp.Current = &client.CurrentConditions{TempC: tempC, TempF: tempF, Humidity: humidity, WindKph: ptr(9.4)}
	if condition != "" {
		resp.Current.Condition = &client.Condition{Text: condition}
	}
	return resp
}

func newFetcher(p client.WeatherClient) *Fetcher {
	return NewFetcher(p, clockwork.NewFakeClockAt(fixedNow), nil)
}

func nyc() models.LocationResult {
	return models.LocationResult{Location: "New York, NY, USA", Evidence: "address fields", Confidence: 0.95}
}

func TestFetch_Success(t *testing.T) {
	p := &fakeProvider{resp: current(ptr(22.5), ptr(72.5), ptr(58), "Partly cloudy")}

	got := newFetcher(p).Fetch(context.Background(), nyc())

	require.True(t, got.APISuccess, "api error: %s", got.APIError)
	assert.Equal(t, "New York, NY, USA", p.last)
	assert.Equal(t, "New York, NY, USA", got.LocationUsed)
	require.NotNil(t, got.TemperatureCelsius)
	assert.Equal(t, 22.5, *got.TemperatureCelsius)
	assert.Equal(t, 72.5, *got.TemperatureFahrenheit)
	assert.Equal(t, 58, *got.Humidity)
	assert.Equal(t, 9.4, *got.WindSpeedKph)
	assert.Equal(t, "Partly cloudy", got.Condition)
	assert.Equal(t, DataSource, got.DataSource)
	assert.Equal(t, "2024-06-01T12:30:00Z", got.Timestamp)
	assert.Empty(t, got.APIError)
}

func TestFetch_ValidateShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		loc     models.LocationResult
		wantErr string
	}{
		{
			name:    "no location",
			loc:     models.LocationResult{Evidence: "nothing usable", Confidence: 0.2},
			wantErr: "No location available for weather retrieval",
		},
		{
			name:    "blank location",
			loc:     models.LocationResult{Location: "   ", Confidence: 0.2},
			wantErr: "No location available for weather retrieval",
		},
		{
			name:    "confidence below floor",
			loc:     models.LocationResult{Location: "Somewhere", Confidence: 0.05},
			wantErr: "Location confidence too low for weather retrieval: 0.05",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			got := newFetcher(p).Fetch(context.Background(), tt.loc)

			assert.False(t, got.APISuccess)
			assert.Equal(t, tt.wantErr, got.APIError)
			assert.Equal(t, 0, p.calls, "provider must not be called")
			assert.Nil(t, got.TemperatureCelsius)
			assert.Equal(t, DataSource, got.DataSource)
			assert.NotEmpty(t, got.Timestamp)
		})
	}
}

func TestFetch_ConfidenceAtFloorProceeds(t *testing.T) {
	p := &fakeProvider{resp: current(ptr(10.0), ptr(50.0), nil, "")}
	loc := models.LocationResult{Location: "Munich, Germany", Confidence: MinConfidence}

	got := newFetcher(p).Fetch(context.Background(), loc)

	assert.True(t, got.APISuccess)
	assert.Equal(t, 1, p.calls)
}

func TestFetch_ProviderErrorBecomesResult(t *testing.T) {
	p := &fakeProvider{err: client.ErrUpstreamFailure}

	got := newFetcher(p).Fetch(context.Background(), nyc())

	assert.False(t, got.APISuccess)
	assert.Equal(t, "Weather API request failed: upstream failure", got.APIError)
	assert.Equal(t, "New York, NY, USA", got.LocationUsed)
	assert.False(t, got.HasTemperatureData())
}

func TestFetch_ProcessFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    client.CurrentResponse
		wantErr string
	}{
		{
			name:    "missing current block",
			resp:    client.CurrentResponse{},
			wantErr: "Failed to process weather data: response missing current conditions",
		},
		{
			name:    "celsius out of range",
			resp:    current(ptr(75.0), ptr(167.0), nil, "Sunny"),
			wantErr: "Failed to process weather data: invalid weather result: temperature in Celsius must be between -100 and 60, got 75",
		},
		{
			name:    "humidity out of range",
			resp:    current(ptr(20.0), ptr(68.0), ptr(120), "Sunny"),
			wantErr: "Failed to process weather data: invalid weather result: humidity must be between 0 and 100, got 120",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newFetcher(&fakeProvider{resp: tt.resp}).Fetch(context.Background(), nyc())

			assert.False(t, got.APISuccess)
			assert.Equal(t, tt.wantErr, got.APIError)
			assert.Nil(t, got.TemperatureCelsius)
		})
	}
}

func TestFetch_MissingTemperatureStillSucceeds(t *testing.T) {
	p := &fakeProvider{resp: current(nil, nil, ptr(40), "Fog")}

	got := newFetcher(p).Fetch(context.Background(), nyc())

	assert.True(t, got.APISuccess)
	assert.False(t, got.HasTemperatureData())
	assert.Equal(t, "Fog", got.Condition)
}

func TestFetchError(t *testing.T) {
	err := &FetchError{Stage: StageFetch, Err: client.ErrRateLimited}
	assert.True(t, errors.Is(err, client.ErrRateLimited))
	assert.Equal(t, "Weather API request failed: rate limited", err.Error())

	validateErr := &FetchError{Stage: StageValidate, Err: ErrNoLocation}
	assert.Equal(t, ErrNoLocation.Error(), validateErr.Error())
}

func TestFetch_WeatherAPITimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wc, err := client.NewWeatherAPIClient("test-api-key-12345", server.URL, 30*time.Millisecond)
	require.NoError(t, err)

	got := newFetcher(wc).Fetch(context.Background(), nyc())

	assert.False(t, got.APISuccess)
	assert.Contains(t, got.APIError, "Weather API request failed")
	assert.Contains(t, got.APIError, "timeout")
	assert.Equal(t, "New York, NY, USA", got.LocationUsed)
}

func TestFetch_WeatherAPIEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Berlin, Germany", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"location":{"name":"Berlin"},"current":{"temp_c":15,"temp_f":59,"humidity":71,"wind_kph":14.4,"condition":{"text":"Overcast"}}}`))
	}))
	defer server.Close()

	wc, err := client.NewWeatherAPIClient("test-api-key-12345", server.URL, time.Second)
	require.NoError(t, err)

	got := newFetcher(wc).Fetch(context.Background(), models.LocationResult{Location: "Berlin, Germany", Confidence: 0.9})

	require.True(t, got.APISuccess, got.APIError)
	assert.Equal(t, "15.0°C (59.0°F)", got.TemperatureDisplay("both"))
	assert.Equal(t, "Overcast", got.Condition)
}
