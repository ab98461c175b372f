package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/eda-mesh/backstage-catalog-api/internal/api"
	"github.com/eda-mesh/backstage-catalog-api/internal/config"
	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/telemetry"
)

// CatalogAppOption configures the catalog app builder
type CatalogAppOption func(*catalogAppConfig) error

type catalogAppConfig struct {
	config *config.Config

	// source is built from the configuration unless injected
	source    kubernetes.ConfigMapSource
	sourceSet bool

	// telemetry is initialised from the configuration unless injected
	telemetry *telemetry.Telemetry

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...CatalogAppOption) (*catalogAppConfig, error) {
	cfg := &catalogAppConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}
	cfg.requestTimeout = cfg.config.Server.GetRequestTimeout()
	cfg.readTimeout = cfg.config.Server.GetReadTimeout()
	cfg.writeTimeout = cfg.config.Server.GetWriteTimeout()
	cfg.idleTimeout = cfg.config.Server.GetIdleTimeout()

	return cfg, nil
}

// NewCatalogApp builds the catalog API server from the given options
func NewCatalogApp(ctx context.Context, opts ...CatalogAppOption) (*CatalogApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	ownsTelemetry := false
	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, cfg.config.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		ownsTelemetry = true
	}

	if !cfg.sourceSet {
		cfg.source = buildSource(cfg.config.Kubernetes)
	}

	httpServer, err := buildHTTPServer(cfg)
	if err != nil {
		if ownsTelemetry {
			_ = cfg.telemetry.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	app := &CatalogApp{
		config:     cfg.config,
		source:     cfg.source,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}
	if ownsTelemetry {
		app.telemetry = cfg.telemetry
	}
	return app, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CatalogAppOption {
	return func(cfg *catalogAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress overrides the configured listen address
func WithAddress(addr string) CatalogAppOption {
	return func(cfg *catalogAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not valid: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}
		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CatalogAppOption {
	return func(cfg *catalogAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithSource injects the ConfigMap source instead of connecting to a cluster.
// A nil source serves 503 on the catalog routes.
func WithSource(source kubernetes.ConfigMapSource) CatalogAppOption {
	return func(cfg *catalogAppConfig) error {
		cfg.source = source
		cfg.sourceSet = true
		return nil
	}
}

// WithTelemetry injects telemetry providers. The caller keeps ownership and
// must shut them down.
func WithTelemetry(t *telemetry.Telemetry) CatalogAppOption {
	return func(cfg *catalogAppConfig) error {
		if t == nil {
			return fmt.Errorf("telemetry cannot be nil")
		}
		cfg.telemetry = t
		return nil
	}
}

// buildSource connects to the cluster. Failures are logged and leave the
// source unset so the server still answers health checks.
func buildSource(k config.KubernetesConfig) kubernetes.ConfigMapSource {
	restConfig, err := kubernetes.GetRESTConfig(k.Kubeconfig)
	if err != nil {
		slog.Warn("Failed to create Kubernetes config, catalog routes will not be available", "error", err)
		return nil
	}

	c, err := kubernetes.NewClient(restConfig)
	if err != nil {
		slog.Warn("Failed to create Kubernetes client, catalog routes will not be available", "error", err)
		return nil
	}

	source, err := kubernetes.NewClusterSource(c,
		kubernetes.WithNamespaces(k.Namespaces...),
		kubernetes.WithLabelSelector(k.GetLabelSelector()),
		kubernetes.WithMaxTries(k.GetMaxTries()),
	)
	if err != nil {
		slog.Warn("Failed to create ConfigMap source, catalog routes will not be available", "error", err)
		return nil
	}

	slog.Info("ConfigMap source initialized",
		"host", restConfig.Host,
		"namespaces", k.Namespaces,
		"label_selector", k.GetLabelSelector(),
	)
	return source
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *catalogAppConfig) (*http.Server, error) {
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	renderMetrics, err := telemetry.NewRenderMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create render metrics: %w", err)
	}

	// Telemetry goes first so rejected and timed out requests are still observed.
	middlewares := append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		metricsMiddleware,
	}, b.middlewares...)

	loc := b.config.Location
	router := api.NewServer(b.source,
		api.WithMiddlewares(middlewares...),
		api.WithLocation(api.LocationOptions{
			Proto:                 loc.Proto,
			Host:                  loc.Host,
			TrustForwardedHeaders: loc.GetTrustForwardedHeaders(),
		}),
		api.WithRenderObserver(renderMetrics),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
