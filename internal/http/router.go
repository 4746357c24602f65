// Package httpapi assembles the public HTTP surface: the platform middleware
// chain, the authenticated /v1 API and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sahara/internal/platform/metrics"
	"sahara/internal/platform/middleware"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/platform/middleware/metadata"
	"sahara/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries what the router needs besides the handlers.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      middleware.JWTValidator
	RequestTimeout time.Duration
	// MetricsHandler defaults to the Prometheus default registry.
	MetricsHandler http.Handler
	// ReadinessChecks are run by /ready, keyed by dependency name.
	ReadinessChecks map[string]func(ctx context.Context) error
}

// NewRouter mounts the handlers under /v1 behind bearer auth. /health, /ready
// and /metrics stay unauthenticated.
func NewRouter(cfg Config, handlers ...Registrar) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readiness(cfg.ReadinessChecks))
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	r.Route("/v1", func(api chi.Router) {
		api.Use(middleware.Latency(cfg.Metrics))
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		api.Use(requesttime.Middleware)
		api.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}

// readiness reports 503 naming every failed dependency.
func readiness(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
