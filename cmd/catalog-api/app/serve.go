package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eda-mesh/backstage-catalog-api/internal/app"
	"github.com/eda-mesh/backstage-catalog-api/internal/config"
	"github.com/eda-mesh/backstage-catalog-api/internal/versions"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog API server",
		Long: `Start the catalog API server.

The configuration file (--config) is optional. Without it the server listens
on :8080, reads every ConfigMap in every namespace, and derives Location
target URLs from each request. Set kubernetes.labelSelector to export only
matching ConfigMaps.

Settings can be overridden with CATALOG_API_* environment variables, for
example CATALOG_API_LOCATION_HOST or CATALOG_API_KUBERNETES_NAMESPACES.
See the examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	cmd.Flags().String("address", "", "Address to listen on (default \":8080\")")
	cmd.Flags().String("kubeconfig", "", "Path to a kubeconfig file, instead of the in-cluster configuration")
	return cmd
}

// loadConfig reads the optional config file and applies environment and
// flag overrides, flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewEnvViper()
	for key, flag := range map[string]string{
		"server.address":        "address",
		"kubernetes.kubeconfig": "kubeconfig",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind %s flag: %w", flag, err)
		}
	}

	opts := []config.Option{config.WithOverrides(v)}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	info := versions.GetVersionInfo()
	slog.Info("Starting catalog API server",
		"version", info.Version,
		"commit", info.Commit,
		"address", cfg.Server.GetAddress(),
	)

	catalogApp, err := app.NewCatalogApp(context.WithoutCancel(ctx), app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create catalog app: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- catalogApp.Start()
	}()

	select {
	case err := <-errCh:
		// the server stopped on its own, release what the app owns
		if stopErr := catalogApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop catalog app", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	if err := catalogApp.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
