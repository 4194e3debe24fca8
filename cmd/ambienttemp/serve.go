package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/ambient-temp-service/internal/client"
	"github.com/kjstillabower/ambient-temp-service/internal/config"
	httphandler "github.com/kjstillabower/ambient-temp-service/internal/http"
	"github.com/kjstillabower/ambient-temp-service/internal/lifecycle"
	"github.com/kjstillabower/ambient-temp-service/internal/observability"
)

const inFlightCheckInterval = 50 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `Serves GET /equipment, /equipment/{id}, /equipment/{id}/ambient, /health and
/metrics until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("equipment store loaded", zap.Int("count", p.store.Count()))
	if err := checkWeatherKey(ctx, p.weather, cfg.WeatherAPITimeout, logger); err != nil {
		return err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(p.svc, p.store, &httphandler.HealthConfig{
		DegradedWindow:   cfg.HealthWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		LLMProvider:      cfg.ResolvedProvider(),
		StartTime:        time.Now(),
	}, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})
	observability.RegisterPipelineGauges(cfg.HealthWindow)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// checkWeatherKey makes one provider call before serving. A rejected key stops startup;
// any other failure is logged and serving continues.
func checkWeatherKey(ctx context.Context, wc client.WeatherClient, timeout time.Duration, logger *zap.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := wc.ValidateAPIKey(ctx)
	switch {
	case err == nil:
		logger.Info("weather API key accepted")
		return nil
	case errors.Is(err, client.ErrInvalidAPIKey):
		return fmt.Errorf("weather API key rejected: %w", err)
	default:
		logger.Warn("weather API key check failed; serving anyway",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return nil
	}
}
