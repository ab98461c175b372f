package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eda-mesh/backstage-catalog-api/internal/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file and print the effective settings.
Environment overrides are not applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(config.WithConfigPath(path))
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func printSummary(w io.Writer, cfg *config.Config) error {
	namespaces := "all"
	if len(cfg.Kubernetes.Namespaces) > 0 {
		namespaces = strings.Join(cfg.Kubernetes.Namespaces, ", ")
	}
	selector := cfg.Kubernetes.GetLabelSelector()
	if selector == "" {
		selector = "(everything)"
	}

	var b strings.Builder
	b.WriteString("✓ Valid configuration\n")
	fmt.Fprintf(&b, "  Address: %s\n", cfg.Server.GetAddress())
	fmt.Fprintf(&b, "  Namespaces: %s\n", namespaces)
	fmt.Fprintf(&b, "  Label selector: %s\n", selector)
	if cfg.Location.Proto != "" || cfg.Location.Host != "" {
		fmt.Fprintf(&b, "  Location target: %s://%s\n",
			valueOr(cfg.Location.Proto, "<request>"), valueOr(cfg.Location.Host, "<request>"))
	}
	if t := cfg.Telemetry; t != nil && t.Enabled {
		fmt.Fprintf(&b, "  Telemetry: %s\n", t.GetServiceName())
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
