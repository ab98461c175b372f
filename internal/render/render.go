// Package render turns Kubernetes ConfigMaps into the YAML documents served
// to the Backstage catalog: the concatenated data of a single ConfigMap, and
// a Location manifest pointing at every exported ConfigMap.
package render

import (
	"errors"
	"slices"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

const (
	// ContentTypeYAML is the content type of every rendered document
	ContentTypeYAML = "application/yaml"

	// NoDataComment is emitted for a ConfigMap without data entries
	NoDataComment = "# No data found\n"

	locationHeader = "apiVersion: backstage.io/v1alpha1\n" +
		"kind: Location\n" +
		"spec:\n" +
		"  targets:\n"
)

var (
	// ErrMissingProto is returned when a Location is rendered without a URL scheme
	ErrMissingProto = errors.New("location proto is required")
	// ErrMissingHost is returned when a Location is rendered without a host
	ErrMissingHost = errors.New("location host is required")
)

// Target holds the scheme and host used to build Location target URLs.
type Target struct {
	Proto string
	Host  string
}

// Validate checks that both the scheme and the host are set.
func (t Target) Validate() error {
	if t.Proto == "" {
		return ErrMissingProto
	}
	if t.Host == "" {
		return ErrMissingHost
	}
	return nil
}

// URL returns the target URL of the ConfigMap identified by namespace and name.
// Values are interpolated verbatim.
func (t Target) URL(namespace, name string) string {
	return t.Proto + "://" + t.Host + "/" + namespace + "/" + name
}

// ConfigMapData renders the values of a ConfigMap data map, one per line.
// Keys are dropped and values are assumed to already be YAML fragments.
// Values are emitted in key order so the output is stable.
func ConfigMapData(data map[string]string) string {
	if len(data) == 0 {
		return NoDataComment
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(data[k])
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ConfigMap renders a single ConfigMap. A nil ConfigMap renders like one
// without data.
func ConfigMap(cm *corev1.ConfigMap) string {
	if cm == nil {
		return NoDataComment
	}
	return ConfigMapData(cm.Data)
}

// Location renders a Backstage Location manifest with one target per
// ConfigMap, in the order given.
func Location(items []corev1.ConfigMap, target Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(locationHeader)
	for i := range items {
		sb.WriteString("    - ")
		sb.WriteString(target.URL(items[i].Namespace, items[i].Name))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
