// Package app wires configuration, the ConfigMap source, telemetry and the
// HTTP server into a runnable catalog API application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eda-mesh/backstage-catalog-api/internal/config"
	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/telemetry"
)

const startupProbeTimeout = 10 * time.Second

// CatalogApp is the catalog API server and the components it owns
type CatalogApp struct {
	config     *config.Config
	source     kubernetes.ConfigMapSource
	telemetry  *telemetry.Telemetry
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Listen binds the server address. Start calls it when needed; calling it
// first lets callers learn the bound address, e.g. with port 0.
func (app *CatalogApp) Listen() (net.Addr, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.listener != nil {
		return app.listener.Addr(), nil
	}

	var lc net.ListenConfig
	l, err := lc.Listen(app.ctx, "tcp", app.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = l
	return l.Addr(), nil
}

// Start serves HTTP until Stop is called or the server fails. It blocks.
func (app *CatalogApp) Start() error {
	addr, err := app.Listen()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		slog.Info("Server listening", "address", addr.String())
		if err := app.httpServer.Serve(app.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.probeSource(ctx)
		return nil
	})

	return g.Wait()
}

// probeSource checks once that the cluster answers, so misconfiguration shows
// up in the logs at startup rather than on the first catalog request.
func (app *CatalogApp) probeSource(ctx context.Context) {
	if app.source == nil {
		slog.Warn("No ConfigMap source configured, catalog routes will answer 503")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()

	if err := app.source.Ready(ctx); err != nil {
		if ctx.Err() != nil && app.ctx.Err() != nil {
			return
		}
		slog.Warn("Kubernetes API not reachable at startup", "error", err)
		return
	}
	slog.Info("Kubernetes API reachable")
}

// Stop shuts the HTTP server down, waiting at most timeout for in-flight
// requests, then flushes telemetry owned by the app.
func (app *CatalogApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	// a listener bound by Listen but never served is not closed by Shutdown
	app.mu.Lock()
	if app.listener != nil {
		_ = app.listener.Close()
	}
	app.mu.Unlock()

	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CatalogApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *CatalogApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
