package kubernetes

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// ErrUnsupportedKind is returned for manifests that are not ConfigMaps
var ErrUnsupportedKind = errors.New("unsupported manifest kind")

// ReadConfigMaps reads every ConfigMap from a stream of YAML or JSON
// documents. Documents may be a ConfigMap, a ConfigMapList, or a kubectl
// style List of ConfigMaps. Empty documents are skipped.
func ReadConfigMaps(r io.Reader) ([]corev1.ConfigMap, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(r))

	var items []corev1.ConfigMap
	for i := 0; ; i++ {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read document %d: %w", i, err)
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		parsed, err := ParseManifest(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		items = append(items, parsed...)
	}
	return items, nil
}

// ParseManifest parses a single ConfigMap or ConfigMap list document
func ParseManifest(data []byte) ([]corev1.ConfigMap, error) {
	var meta metav1.TypeMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	switch meta.Kind {
	case "ConfigMap":
		var cm corev1.ConfigMap
		if err := yaml.Unmarshal(data, &cm); err != nil {
			return nil, fmt.Errorf("failed to parse ConfigMap: %w", err)
		}
		return []corev1.ConfigMap{cm}, nil
	case "ConfigMapList", "List":
		var list corev1.ConfigMapList
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", meta.Kind, err)
		}
		for i := range list.Items {
			if k := list.Items[i].Kind; k != "" && k != "ConfigMap" {
				return nil, fmt.Errorf("%w: %s in %s", ErrUnsupportedKind, k, meta.Kind)
			}
		}
		return list.Items, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, meta.Kind)
	}
}
