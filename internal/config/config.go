// Package config provides configuration loading and management for the catalog API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables overriding the configuration
	EnvPrefix = "CATALOG_API"

	defaultAddress        = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultMaxTries       = 3
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithOverrides applies values from v on top of the file configuration.
// Keys use the dotted YAML path, e.g. "location.host".
func WithOverrides(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		cfg.viper = v
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Kubernetes KubernetesConfig  `yaml:"kubernetes"`
	Location   LocationConfig    `yaml:"location"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address, defaults to ":8080"
	Address string `yaml:"address,omitempty"`

	// RequestTimeout bounds handler execution (e.g. "10s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
	ReadTimeout    string `yaml:"readTimeout,omitempty"`
	WriteTimeout   string `yaml:"writeTimeout,omitempty"`
	IdleTimeout    string `yaml:"idleTimeout,omitempty"`
}

// KubernetesConfig defines how exported ConfigMaps are discovered
type KubernetesConfig struct {
	// Kubeconfig is an explicit kubeconfig path. When empty the in-cluster
	// config is used, falling back to the default loading rules.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// Namespaces restricts discovery. Empty means every namespace.
	Namespaces []string `yaml:"namespaces,omitempty"`

	// LabelSelector selects exported ConfigMaps. Empty matches every
	// ConfigMap.
	LabelSelector *string `yaml:"labelSelector,omitempty"`

	// MaxTries is the number of attempts for each Kubernetes API call
	MaxTries uint `yaml:"maxTries,omitempty"`
}

// LocationConfig defines how Location target URLs are built
type LocationConfig struct {
	// Proto overrides the URL scheme of Location targets
	Proto string `yaml:"proto,omitempty"`

	// Host overrides the host (and port) of Location targets
	Host string `yaml:"host,omitempty"`

	// TrustForwardedHeaders enables X-Forwarded-Proto and X-Forwarded-Host.
	// Defaults to true.
	TrustForwardedHeaders *bool `yaml:"trustForwardedHeaders,omitempty"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{}
}

// LoadConfig loads, overrides and validates the configuration.
// Without a path the defaults are used.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := Default()
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.viper != nil {
		applyOverrides(config, loaderCfg.viper)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// NewEnvViper returns a viper instance reading CATALOG_API_* variables for
// every overridable key.
func NewEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range overrideKeys {
		_ = v.BindEnv(key)
	}
	return v
}

var overrideKeys = []string{
	"server.address",
	"kubernetes.kubeconfig",
	"kubernetes.namespaces",
	"kubernetes.labelSelector",
	"location.proto",
	"location.host",
	"location.trustForwardedHeaders",
}

func applyOverrides(c *Config, v *viper.Viper) {
	if v.IsSet("server.address") {
		c.Server.Address = v.GetString("server.address")
	}
	if v.IsSet("kubernetes.kubeconfig") {
		c.Kubernetes.Kubeconfig = v.GetString("kubernetes.kubeconfig")
	}
	if v.IsSet("kubernetes.namespaces") {
		c.Kubernetes.Namespaces = splitList(v.GetStringSlice("kubernetes.namespaces"))
	}
	if v.IsSet("kubernetes.labelSelector") {
		selector := v.GetString("kubernetes.labelSelector")
		c.Kubernetes.LabelSelector = &selector
	}
	if v.IsSet("location.proto") {
		c.Location.Proto = v.GetString("location.proto")
	}
	if v.IsSet("location.host") {
		c.Location.Host = v.GetString("location.host")
	}
	if v.IsSet("location.trustForwardedHeaders") {
		trust := v.GetBool("location.trustForwardedHeaders")
		c.Location.TrustForwardedHeaders = &trust
	}
}

// splitList accepts both repeated values and comma separated environment values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	for name, value := range map[string]string{
		"server.requestTimeout": c.Server.RequestTimeout,
		"server.readTimeout":    c.Server.ReadTimeout,
		"server.writeTimeout":   c.Server.WriteTimeout,
		"server.idleTimeout":    c.Server.IdleTimeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration (e.g., '10s'), got %q", name, value))
		}
	}

	for i, ns := range c.Kubernetes.Namespaces {
		if strings.TrimSpace(ns) == "" {
			errs = append(errs, fmt.Errorf("kubernetes.namespaces[%d]: namespace cannot be empty", i))
		}
	}

	if _, err := labels.Parse(c.Kubernetes.GetLabelSelector()); err != nil {
		errs = append(errs, fmt.Errorf("kubernetes.labelSelector: %w", err))
	}

	if p := c.Location.Proto; p != "" && p != "http" && p != "https" {
		errs = append(errs, fmt.Errorf("location.proto must be http or https, got %q", p))
	}
	if strings.Contains(c.Location.Host, "/") {
		errs = append(errs, fmt.Errorf("location.host must not contain a path, got %q", c.Location.Host))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// GetAddress returns the listen address, using ":8080" if not specified
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return defaultAddress
	}
	return s.Address
}

// GetRequestTimeout returns the handler timeout
func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return durationOr(s.RequestTimeout, defaultRequestTimeout)
}

// GetReadTimeout returns the server read timeout
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return durationOr(s.ReadTimeout, defaultReadTimeout)
}

// GetWriteTimeout returns the server write timeout
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return durationOr(s.WriteTimeout, defaultWriteTimeout)
}

// GetIdleTimeout returns the server idle timeout
func (s *ServerConfig) GetIdleTimeout() time.Duration {
	return durationOr(s.IdleTimeout, defaultIdleTimeout)
}

func durationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetLabelSelector returns the configured selector or the default one
func (k *KubernetesConfig) GetLabelSelector() string {
	if k.LabelSelector == nil {
		return kubernetes.DefaultLabelSelector
	}
	return *k.LabelSelector
}

// GetMaxTries returns the number of attempts for Kubernetes API calls
func (k *KubernetesConfig) GetMaxTries() uint {
	if k.MaxTries == 0 {
		return defaultMaxTries
	}
	return k.MaxTries
}

// GetTrustForwardedHeaders reports whether X-Forwarded-* headers are honoured
func (l *LocationConfig) GetTrustForwardedHeaders() bool {
	if l.TrustForwardedHeaders == nil {
		return true
	}
	return *l.TrustForwardedHeaders
}
