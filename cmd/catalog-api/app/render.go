package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/pipeline"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render catalog YAML from ConfigMap manifests without a cluster",
		Long: `Render the documents the server would return, reading ConfigMap manifests
(ConfigMap, ConfigMapList or List, YAML or JSON) from --file or stdin.`,
	}
	cmd.PersistentFlags().StringP("file", "f", "-", "Manifest file to read, - for stdin")

	cmd.AddCommand(newRenderLocationCmd())
	cmd.AddCommand(newRenderConfigMapCmd())
	return cmd
}

func newRenderLocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Render a Location manifest listing every ConfigMap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readManifests(cmd)
			if err != nil {
				return err
			}

			proto, _ := cmd.Flags().GetString("proto")
			host, _ := cmd.Flags().GetString("host")

			exchange := pipeline.NewExchange(items)
			exchange.SetProperty(pipeline.PropertyProto, proto)
			exchange.SetProperty(pipeline.PropertyHost, host)

			return runPipeline(cmd, exchange, pipeline.LocationYAMLProcessor{})
		},
	}
	cmd.Flags().String("proto", "https", "Scheme of the target URLs")
	cmd.Flags().String("host", "", "Host (and port) of the target URLs")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newRenderConfigMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configmap",
		Short: "Render the entities stored in a ConfigMap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readManifests(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			cm, err := selectConfigMap(items, name)
			if err != nil {
				return err
			}

			return runPipeline(cmd, pipeline.NewExchange(cm), pipeline.ConfigMapYAMLProcessor{})
		},
	}
	cmd.Flags().String("name", "", "ConfigMap to render, as name or namespace/name, when the input holds several")
	return cmd
}

func readManifests(cmd *cobra.Command) ([]corev1.ConfigMap, error) {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		defer f.Close()
		r = f
	}

	items, err := kubernetes.ReadConfigMaps(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return items, nil
}

// selectConfigMap picks the ConfigMap matching name, or the only one when
// name is empty.
func selectConfigMap(items []corev1.ConfigMap, name string) (*corev1.ConfigMap, error) {
	if name == "" {
		if len(items) != 1 {
			return nil, fmt.Errorf("manifest contains %d ConfigMaps, select one with --name", len(items))
		}
		return &items[0], nil
	}

	namespace, short, qualified := strings.Cut(name, "/")
	if !qualified {
		namespace, short = "", name
	}

	for i := range items {
		if items[i].Name != short {
			continue
		}
		if qualified && items[i].Namespace != namespace {
			continue
		}
		return &items[i], nil
	}
	return nil, fmt.Errorf("ConfigMap %q not found in manifest", name)
}

func runPipeline(cmd *cobra.Command, exchange *pipeline.Exchange, steps ...pipeline.Processor) error {
	if err := pipeline.Pipeline(steps).Process(cmd.Context(), exchange); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	body, ok := exchange.BodyString()
	if !ok {
		return fmt.Errorf("failed to render: body is %T", exchange.Message.Body)
	}
	_, err := io.WriteString(cmd.OutOrStdout(), body)
	return err
}
