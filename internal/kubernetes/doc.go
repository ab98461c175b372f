// Package kubernetes reads the ConfigMaps exported to the Backstage catalog,
// either from a cluster through controller-runtime or from manifest files.
package kubernetes
