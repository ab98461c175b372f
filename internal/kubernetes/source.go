package kubernetes

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// DefaultLabelSelector selects the ConfigMaps exported to the catalog.
	// Empty, so every ConfigMap is exported unless a selector is configured.
	DefaultLabelSelector = ""

	defaultMaxTries        = 3
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=source.go ConfigMapSource

// ConfigMapSource provides read access to the exported ConfigMaps
type ConfigMapSource interface {
	// List returns every exported ConfigMap, ordered by namespace and name
	List(ctx context.Context) (*corev1.ConfigMapList, error)

	// Get returns a single exported ConfigMap
	Get(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error)

	// Ready reports whether the cluster can be queried
	Ready(ctx context.Context) error
}

type clusterSourceOptions struct {
	namespaces      []string
	selector        labels.Selector
	maxTries        uint
	initialInterval time.Duration
}

// Option configures a ClusterSource
type Option func(*clusterSourceOptions) error

// WithNamespaces restricts the source to the given namespaces.
// Without it every namespace is read.
func WithNamespaces(namespaces ...string) Option {
	return func(o *clusterSourceOptions) error {
		for _, ns := range namespaces {
			if ns == "" {
				return fmt.Errorf("namespace cannot be empty")
			}
		}
		o.namespaces = append(o.namespaces, namespaces...)
		return nil
	}
}

// WithLabelSelector sets the label selector exported ConfigMaps must match.
// An empty selector matches every ConfigMap.
func WithLabelSelector(selector string) Option {
	return func(o *clusterSourceOptions) error {
		sel, err := labels.Parse(selector)
		if err != nil {
			return fmt.Errorf("invalid label selector %q: %w", selector, err)
		}
		o.selector = sel
		return nil
	}
}

// WithMaxTries sets how many times a failing API call is attempted
func WithMaxTries(tries uint) Option {
	return func(o *clusterSourceOptions) error {
		if tries == 0 {
			return fmt.Errorf("max tries must be greater than 0")
		}
		o.maxTries = tries
		return nil
	}
}

// WithInitialInterval sets the first retry delay
func WithInitialInterval(interval time.Duration) Option {
	return func(o *clusterSourceOptions) error {
		if interval <= 0 {
			return fmt.Errorf("initial interval must be greater than 0")
		}
		o.initialInterval = interval
		return nil
	}
}

// ClusterSource implements ConfigMapSource with a controller-runtime client
type ClusterSource struct {
	client          client.Reader
	namespaces      []string
	selector        labels.Selector
	maxTries        uint
	initialInterval time.Duration
}

var _ ConfigMapSource = (*ClusterSource)(nil)

// NewClusterSource creates a ConfigMapSource reading through c.
func NewClusterSource(c client.Reader, opts ...Option) (*ClusterSource, error) {
	if c == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}

	sel, err := labels.Parse(DefaultLabelSelector)
	if err != nil {
		return nil, err
	}

	o := &clusterSourceOptions{
		selector:        sel,
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	slices.Sort(o.namespaces)
	return &ClusterSource{
		client:          c,
		namespaces:      slices.Compact(o.namespaces),
		selector:        o.selector,
		maxTries:        o.maxTries,
		initialInterval: o.initialInterval,
	}, nil
}

// List implements ConfigMapSource.List
func (s *ClusterSource) List(ctx context.Context) (*corev1.ConfigMapList, error) {
	result := &corev1.ConfigMapList{}

	if len(s.namespaces) == 0 {
		list, err := s.list(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list configmaps: %w", err)
		}
		result.Items = list.Items
	} else {
		for _, ns := range s.namespaces {
			list, err := s.list(ctx, client.InNamespace(ns))
			if err != nil {
				return nil, fmt.Errorf("failed to list configmaps in namespace %s: %w", ns, err)
			}
			result.Items = append(result.Items, list.Items...)
		}
	}

	slices.SortFunc(result.Items, func(a, b corev1.ConfigMap) int {
		return cmp.Or(
			cmp.Compare(a.Namespace, b.Namespace),
			cmp.Compare(a.Name, b.Name),
		)
	})

	slog.DebugContext(ctx, "ConfigMaps listed",
		"count", len(result.Items),
		"selector", s.selector.String(),
	)
	return result, nil
}

// Get implements ConfigMapSource.Get. ConfigMaps outside the configured
// namespaces or not matching the label selector are reported as not found.
func (s *ClusterSource) Get(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	if !s.namespaceAllowed(namespace) {
		return nil, apierrors.NewNotFound(corev1.Resource("configmaps"), name)
	}

	cm, err := retry(ctx, s, func() (*corev1.ConfigMap, error) {
		var cm corev1.ConfigMap
		err := s.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, &cm)
		return &cm, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", namespace, name, err)
	}

	if !s.selector.Matches(labels.Set(cm.Labels)) {
		return nil, apierrors.NewNotFound(corev1.Resource("configmaps"), name)
	}
	return cm, nil
}

// Ready implements ConfigMapSource.Ready. With a namespace allow-list every
// namespace is probed, so missing RBAC on any of them fails readiness.
func (s *ClusterSource) Ready(ctx context.Context) error {
	if len(s.namespaces) == 0 {
		return s.probe(ctx)
	}
	for _, ns := range s.namespaces {
		if err := s.probe(ctx, client.InNamespace(ns)); err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
	}
	return nil
}

func (s *ClusterSource) probe(ctx context.Context, opts ...client.ListOption) error {
	var list corev1.ConfigMapList
	if err := s.client.List(ctx, &list, append(opts, client.Limit(1))...); err != nil {
		return fmt.Errorf("kubernetes API not reachable: %w", err)
	}
	return nil
}

func (s *ClusterSource) list(ctx context.Context, opts ...client.ListOption) (*corev1.ConfigMapList, error) {
	opts = append(opts, client.MatchingLabelsSelector{Selector: s.selector})
	return retry(ctx, s, func() (*corev1.ConfigMapList, error) {
		var list corev1.ConfigMapList
		err := s.client.List(ctx, &list, opts...)
		return &list, err
	})
}

func (s *ClusterSource) namespaceAllowed(namespace string) bool {
	if len(s.namespaces) == 0 {
		return true
	}
	_, found := slices.BinarySearch(s.namespaces, namespace)
	return found
}

// retry runs op until it succeeds, fails permanently, or runs out of tries.
func retry[T any](ctx context.Context, s *ClusterSource, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	b.MaxInterval = defaultMaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && isPermanent(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Kubernetes API call failed, retrying",
				"error", err,
				"retry_in", next,
			)
		}),
	)
}

// isPermanent reports whether retrying err cannot succeed
func isPermanent(err error) bool {
	return apierrors.IsNotFound(err) ||
		apierrors.IsForbidden(err) ||
		apierrors.IsUnauthorized(err) ||
		apierrors.IsBadRequest(err) ||
		apierrors.IsInvalid(err)
}
