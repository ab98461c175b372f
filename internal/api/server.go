// Package api provides the HTTP server exposing Kubernetes ConfigMaps to the
// Backstage catalog.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/pipeline"
)

// ServerOption configures the catalog API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	location       LocationOptions
	observer       pipeline.RenderObserver
	metricsHandler http.Handler
}

// LocationOptions controls how the scheme and host of Location targets are chosen.
// Proto and Host take precedence over anything read from the request.
type LocationOptions struct {
	Proto                 string
	Host                  string
	TrustForwardedHeaders bool
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithLocation sets how Location targets are addressed
func WithLocation(opts LocationOptions) ServerOption {
	return func(cfg *serverConfig) {
		cfg.location = opts
	}
}

// WithRenderObserver is notified of every rendered document
func WithRenderObserver(observer pipeline.RenderObserver) ServerOption {
	return func(cfg *serverConfig) {
		cfg.observer = observer
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates the router. A nil source makes the catalog routes and the
// readiness probe answer 503.
func NewServer(source kubernetes.ConfigMapSource, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		location: LocationOptions{TrustForwardedHeaders: true},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(source))
	r.Get("/version", versionHandler)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	routes := &catalogRoutes{
		source:   source,
		location: cfg.location,
		observer: cfg.observer,
	}
	r.Get("/", routes.getLocation)
	r.Get("/{namespace}/{configmap}", routes.getConfigMap)

	return r
}

// LoggingMiddleware logs each request at debug level
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
