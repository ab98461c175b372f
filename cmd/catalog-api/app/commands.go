// Package app provides the command line interface of the catalog API.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eda-mesh/backstage-catalog-api/internal/config"
	"github.com/eda-mesh/backstage-catalog-api/internal/logging"
	"github.com/eda-mesh/backstage-catalog-api/internal/versions"
)

const (
	keyLogLevel  = "log-level"
	keyLogFormat = "log-format"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               "catalog-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Backstage catalog API for Kubernetes ConfigMaps",
		Long: `catalog-api serves Kubernetes ConfigMaps as Backstage catalog entities.

GET / returns a Location listing every exported ConfigMap, and
GET /{namespace}/{configmap} returns the entities stored in one ConfigMap.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd, v)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().String(keyLogLevel, "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String(keyLogFormat, logging.FormatJSON, "Log format (json, console)")
	bindFlag(v, keyLogLevel, rootCmd.PersistentFlags().Lookup(keyLogLevel))
	bindFlag(v, keyLogFormat, rootCmd.PersistentFlags().Lookup(keyLogFormat))
	_ = v.BindEnv(keyLogLevel, config.EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv(keyLogFormat, config.EnvPrefix+"_LOG_FORMAT")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setupLogging installs the process logger. Flags win over environment
// variables; an invalid level falls back to info.
func setupLogging(cmd *cobra.Command, v *viper.Viper) error {
	levelStr := v.GetString(keyLogLevel)
	level, levelErr := logging.ParseLevel(levelStr)

	if _, err := logging.Setup(
		logging.WithLevel(level),
		logging.WithFormat(v.GetString(keyLogFormat)),
		logging.WithOutput(cmd.ErrOrStderr()),
	); err != nil {
		return err
	}

	if levelErr != nil {
		slog.Warn("Invalid log level, using info", "value", levelStr)
	}
	return nil
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		slog.Error("Error binding flag", "flag", key, "error", err)
	}
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			switch format {
			case "json":
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			case "":
				_, err := fmt.Fprintf(cmd.OutOrStdout(),
					"catalog-api %s\ncommit: %s\nbuilt: %s\ngo: %s\nplatform: %s\n",
					info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
				return err
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
