package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/equipment"
	"github.com/kjstillabower/ambient-temp-service/internal/lifecycle"
	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/service"
	"github.com/kjstillabower/ambient-temp-service/internal/traffic"
	"github.com/kjstillabower/ambient-temp-service/internal/validation"
)

// Pipeline runs one ambient temperature request.
type Pipeline interface {
	GetAmbientTemperature(ctx context.Context, equipmentID string) models.FinalResponse
}

// Catalog is the read side of the equipment store.
type Catalog interface {
	List() []string
	Lookup(equipmentID string) (models.EquipmentMetadata, error)
	Info(equipmentID string) string
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct float64
	LLMProvider      string
	StartTime        time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pipeline         Pipeline
	catalog          Catalog
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(pipeline Pipeline, catalog Catalog, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pipeline:     pipeline,
		catalog:      catalog,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type equipmentSummary struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// ListEquipment handles GET /equipment.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	ids := h.catalog.List()
	items := make([]equipmentSummary, 0, len(ids))
	for _, id := range ids {
		items = append(items, equipmentSummary{ID: id, Summary: h.catalog.Info(id)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(items),
		"equipment": items,
	})
}

// GetEquipment handles GET /equipment/{id}.
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := equipmentIDFromRequest(w, r)
	if !ok {
		return
	}
	md, err := h.catalog.Lookup(id)
	if err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "EQUIPMENT_NOT_FOUND", err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "equipment lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// GetAmbient handles GET /equipment/{id}/ambient. The body is always a FinalResponse;
// the status distinguishes unknown equipment and other pipeline failures.
func (h *Handler) GetAmbient(w http.ResponseWriter, r *http.Request) {
	id, ok := equipmentIDFromRequest(w, r)
	if !ok {
		return
	}

	resp := h.pipeline.GetAmbientTemperature(r.Context(), id)

	status := http.StatusOK
	switch {
	case resp.ErrorMessage == service.MsgNoMetadata:
		status = http.StatusNotFound
	case resp.IsError():
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func equipmentIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := validation.ValidateEquipmentID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_EQUIPMENT_ID", err.Error())
		return "", false
	}
	return id, true
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		"equipmentStore": "healthy",
		"pipeline":       "healthy",
	}
	if len(h.catalog.List()) == 0 {
		checks["equipmentStore"] = "empty"
	}
	if result.status == "degraded" {
		checks["pipeline"] = "unhealthy"
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "ambient-temp-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if since := lifecycle.ShuttingDownSince(); !since.IsZero() {
		resp["shuttingDownSince"] = since.UTC().Format(time.RFC3339)
	}
	if h.healthConfig != nil {
		resp["llmProvider"] = h.healthConfig.LLMProvider
		if !h.healthConfig.StartTime.IsZero() {
			resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && traffic.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
