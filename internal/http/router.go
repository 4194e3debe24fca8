package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

// RouterConfig controls the middleware applied to pipeline routes.
type RouterConfig struct {
	// Limiter is nil when rate limiting is disabled.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter registers the health, metrics and equipment routes. Only the ambient route
// runs the pipeline, so only it is rate limited and bounded by RequestTimeout.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/equipment", h.ListEquipment).Methods("GET")
	router.HandleFunc("/equipment/{id}", h.GetEquipment).Methods("GET")

	ambient := RateLimitMiddleware(cfg.Limiter)(TimeoutMiddleware(cfg.RequestTimeout)(http.HandlerFunc(h.GetAmbient)))
	router.Handle("/equipment/{id}/ambient", ambient).Methods("GET")
	return router
}
