package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/ambient-temp-service/internal/compose"
	"github.com/kjstillabower/ambient-temp-service/internal/equipment"
	"github.com/kjstillabower/ambient-temp-service/internal/lifecycle"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/service"
	"github.com/kjstillabower/ambient-temp-service/internal/traffic"
)

type mockPipeline struct {
	resp   models.FinalResponse
	calls  int
	lastID string
	block  bool // if set, waits for ctx.Done() and reports the context error
}

func (m *mockPipeline) GetAmbientTemperature(ctx context.Context, equipmentID string) models.FinalResponse {
	m.calls++
	m.lastID = equipmentID
	if m.block {
		<-ctx.Done()
		return compose.Error(equipmentID, ctx.Err().Error(), nil)
	}
	return m.resp
}

func ptr[T any](v T) *T { return &v }

func testCatalog() *equipment.Store {
	return equipment.NewStore([]models.EquipmentMetadata{
		{EquipmentID: "PUMP_001_NYC", EquipmentName: "Centrifugal Pump Unit A", EquipmentType: "Pump", AddressCity: "New York"},
		{EquipmentID: "GEN_004_INTL_DE", EquipmentName: "Diesel Generator", EquipmentType: "Generator", AddressCity: "Munich"},
	})
}

func successResponse() models.FinalResponse {
	return compose.Success("PUMP_001_NYC",
		models.LocationResult{Location: "New York, NY, USA", Confidence: 0.95},
		models.WeatherResult{TemperatureCelsius: ptr(22.5), TemperatureFahrenheit: ptr(72.5), APISuccess: true, Timestamp: "2024-06-01T12:00:00Z"},
	)
}

func newTestRouter(p Pipeline, hc *HealthConfig) http.Handler {
	h := NewHandler(p, testCatalog(), hc, zap.NewNop())
	return NewRouter(h, zap.NewNop(), RouterConfig{RequestTimeout: time.Second})
}

// TestHandler_GetAmbient_Success verifies the pipeline result is returned as JSON with 200.
func TestHandler_GetAmbient_Success(t *testing.T) {
	// Arrange
	p := &mockPipeline{resp: successResponse()}
	router := newTestRouter(p, nil)

	// Act
	req := httptest.NewRequest("GET", "/equipment/PUMP_001_NYC/ambient", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Assert
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got models.FinalResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FormattedResponse != "Industrial equipment PUMP_001_NYC is located in New York, NY, USA and the temperature in this location is 22.5°C" {
		t.Errorf("formatted_response = %q", got.FormattedResponse)
	}
	if got.TemperatureCelsius == nil || *got.TemperatureCelsius != 22.5 {
		t.Errorf("temperature_celsius = %v, want 22.5", got.TemperatureCelsius)
	}
	if p.lastID != "PUMP_001_NYC" {
		t.Errorf("pipeline called with %q", p.lastID)
	}
}

// TestHandler_GetAmbient_ErrorStatuses verifies error responses keep the FinalResponse body
// and map unknown equipment to 404 and other failures to 422.
func TestHandler_GetAmbient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		resp       models.FinalResponse
		wantStatus int
	}{
		{"unknown equipment", compose.Error("GHOST_999", service.MsgNoMetadata, nil), http.StatusNotFound},
		{"no location", compose.Error("GHOST_999", service.MsgNoLocation, nil), http.StatusUnprocessableEntity},
		{"weather unavailable is still 200", compose.Success("GHOST_999", models.LocationResult{Location: "Denver, CO", Confidence: 0.8}, models.WeatherResult{}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockPipeline{resp: tt.resp}, nil)
			req := httptest.NewRequest("GET", "/equipment/GHOST_999/ambient", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var got models.FinalResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.FormattedResponse != tt.resp.FormattedResponse {
				t.Errorf("formatted_response = %q, want %q", got.FormattedResponse, tt.resp.FormattedResponse)
			}
		})
	}
}

// TestHandler_InvalidEquipmentID verifies identifiers are validated before the pipeline runs.
func TestHandler_InvalidEquipmentID(t *testing.T) {
	p := &mockPipeline{resp: successResponse()}
	router := newTestRouter(p, nil)

	for _, path := range []string{"/equipment/PUMP%3B001/ambient", "/equipment/PUMP.001", "/equipment/" + strings.Repeat("A", 65) + "/ambient"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
			continue
		}
		var body struct {
			Error struct {
				Code      string `json:"code"`
				RequestID string `json:"requestId"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error.Code != "INVALID_EQUIPMENT_ID" {
			t.Errorf("%s: code = %q, want INVALID_EQUIPMENT_ID", path, body.Error.Code)
		}
		if body.Error.RequestID == "" {
			t.Errorf("%s: requestId missing", path)
		}
	}
	if p.calls != 0 {
		t.Errorf("pipeline calls = %d, want 0", p.calls)
	}
}

// TestHandler_GetAmbient_RequestTimeout verifies the request deadline reaches the pipeline.
func TestHandler_GetAmbient_RequestTimeout(t *testing.T) {
	p := &mockPipeline{block: true}
	h := NewHandler(p, testCatalog(), nil, zap.NewNop())
	router := NewRouter(h, zap.NewNop(), RouterConfig{RequestTimeout: 20 * time.Millisecond})

	req := httptest.NewRequest("GET", "/equipment/PUMP_001_NYC/ambient", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after request timeout")
	}

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "context deadline exceeded") {
		t.Errorf("body = %s, want deadline error", w.Body.String())
	}
}

func TestHandler_ListEquipment(t *testing.T) {
	router := newTestRouter(&mockPipeline{}, nil)
	req := httptest.NewRequest("GET", "/equipment", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Count     int `json:"count"`
		Equipment []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"equipment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Equipment) != 2 {
		t.Fatalf("count = %d, items = %d, want 2", body.Count, len(body.Equipment))
	}
	if body.Equipment[0].ID != "GEN_004_INTL_DE" {
		t.Errorf("first id = %q, want sorted order", body.Equipment[0].ID)
	}
	if body.Equipment[1].Summary != "PUMP_001_NYC: Centrifugal Pump Unit A (Pump) - New York" {
		t.Errorf("summary = %q", body.Equipment[1].Summary)
	}
}

func TestHandler_GetEquipment(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"known", "PUMP_001_NYC", http.StatusOK},
		{"unknown", "GHOST_999", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockPipeline{}, nil)
			req := httptest.NewRequest("GET", "/equipment/"+tt.id, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var md models.EquipmentMetadata
				if err := json.NewDecoder(w.Body).Decode(&md); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if md.AddressCity != "New York" {
					t.Errorf("address_city = %q", md.AddressCity)
				}
			}
		})
	}
}

// TestHandler_GetHealth verifies status priority: shutting-down > degraded > healthy.
func TestHandler_GetHealth(t *testing.T) {
	hc := &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50, LLMProvider: "openai", StartTime: time.Now()}

	tests := []struct {
		name       string
		setup      func()
		wantStatus string
		wantCode   int
	}{
		{"healthy when idle", func() {}, "healthy", http.StatusOK},
		{"healthy under threshold", func() {
			traffic.RecordSuccess()
			traffic.RecordSuccess()
			traffic.RecordError()
		}, "healthy", http.StatusOK},
		{"degraded at threshold", func() {
			traffic.RecordSuccess()
			traffic.RecordError()
		}, "degraded", http.StatusServiceUnavailable},
		{"shutting down wins", func() {
			traffic.RecordError()
			lifecycle.SetShuttingDown(true)
		}, "shutting-down", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traffic.Reset()
			lifecycle.SetShuttingDown(false)
			t.Cleanup(func() {
				traffic.Reset()
				lifecycle.SetShuttingDown(false)
			})
			tt.setup()

			router := newTestRouter(&mockPipeline{}, hc)
			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["service"] != "ambient-temp-service" {
				t.Errorf("service = %v", body["service"])
			}
			if body["llmProvider"] != "openai" {
				t.Errorf("llmProvider = %v", body["llmProvider"])
			}
		})
	}
}

// TestHandler_GetHealth_LogsTransition verifies a status change is logged once.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	traffic.Reset()
	lifecycle.SetShuttingDown(false)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })

	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(&mockPipeline{}, testCatalog(), &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.New(core))

	h.GetHealth(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	lifecycle.SetShuttingDown(true)
	h.GetHealth(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	h.GetHealth(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	transitions := logs.FilterMessage("health status transition").All()
	if len(transitions) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(transitions))
	}
	fields := transitions[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "shutting-down" {
		t.Errorf("transition fields = %v", fields)
	}
}

func TestHandler_GetHealth_ShuttingDownSince(t *testing.T) {
	traffic.Reset()
	lifecycle.SetShuttingDown(true)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })

	h := NewHandler(&mockPipeline{}, testCatalog(), nil, zap.NewNop())
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	since, _ := body["shuttingDownSince"].(string)
	if _, err := time.Parse(time.RFC3339, since); err != nil {
		t.Errorf("shuttingDownSince = %q, want RFC3339 time", since)
	}
}
