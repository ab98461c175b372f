package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type recordingObserver struct {
	mu      sync.Mutex
	kinds   []string
	targets []int
}

func (r *recordingObserver) RecordRender(_ context.Context, kind string, targets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.targets = append(r.targets, targets)
}

func configMap(namespace, name string, data map[string]string) corev1.ConfigMap {
	return corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Data:       data,
	}
}

func TestConfigMapYAMLProcessor(t *testing.T) {
	t.Parallel()

	cm := configMap("default", "catalog", map[string]string{"a.yaml": "x: 1", "b.yaml": "y: 2"})
	empty := configMap("default", "empty", nil)

	tests := []struct {
		name     string
		body     any
		wantBody string
	}{
		{name: "pointer body", body: &cm, wantBody: "x: 1\ny: 2\n"},
		{name: "value body", body: cm, wantBody: "x: 1\ny: 2\n"},
		{name: "no data", body: &empty, wantBody: "# No data found\n"},
		{name: "nil pointer", body: (*corev1.ConfigMap)(nil), wantBody: "# No data found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			obs := &recordingObserver{}
			ex := NewExchange(tt.body)
			err := ConfigMapYAMLProcessor{Observer: obs}.Process(context.Background(), ex)
			require.NoError(t, err)

			body, ok := ex.BodyString()
			require.True(t, ok)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, "application/yaml", ex.Message.Header(HeaderContentType))
			assert.Equal(t, []string{KindConfigMap}, obs.kinds)
		})
	}
}

func TestConfigMapYAMLProcessor_UnexpectedBody(t *testing.T) {
	t.Parallel()

	ex := NewExchange("not a configmap")
	err := ConfigMapYAMLProcessor{}.Process(context.Background(), ex)

	require.ErrorIs(t, err, ErrUnexpectedBody)
	assert.Contains(t, err.Error(), "string")
	assert.Equal(t, "not a configmap", ex.Message.Body)
	assert.Empty(t, ex.Message.Header(HeaderContentType))
}

func TestLocationYAMLProcessor(t *testing.T) {
	t.Parallel()

	items := []corev1.ConfigMap{
		configMap("ns1", "cm1", nil),
		configMap("ns2", "cm2", nil),
	}
	want := "apiVersion: backstage.io/v1alpha1\n" +
		"kind: Location\n" +
		"spec:\n" +
		"  targets:\n" +
		"    - https://example.com/ns1/cm1\n" +
		"    - https://example.com/ns2/cm2\n"

	tests := []struct {
		name string
		body any
	}{
		{name: "list pointer", body: &corev1.ConfigMapList{Items: items}},
		{name: "list value", body: corev1.ConfigMapList{Items: items}},
		{name: "slice", body: items},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			obs := &recordingObserver{}
			ex := NewExchange(tt.body)
			ex.SetProperty(PropertyProto, "https")
			ex.SetProperty(PropertyHost, "example.com")

			err := LocationYAMLProcessor{Observer: obs}.Process(context.Background(), ex)
			require.NoError(t, err)

			body, ok := ex.BodyString()
			require.True(t, ok)
			assert.Equal(t, want, body)
			assert.Equal(t, "application/yaml", ex.Message.Header(HeaderContentType))
			assert.Equal(t, []string{KindLocation}, obs.kinds)
			assert.Equal(t, []int{2}, obs.targets)
		})
	}
}

func TestLocationYAMLProcessor_EmptyList(t *testing.T) {
	t.Parallel()

	ex := NewExchange(&corev1.ConfigMapList{})
	ex.SetProperty(PropertyProto, "http")
	ex.SetProperty(PropertyHost, "localhost:8080")

	require.NoError(t, LocationYAMLProcessor{}.Process(context.Background(), ex))

	body, _ := ex.BodyString()
	assert.True(t, strings.HasSuffix(body, "  targets:\n"))
	assert.NotContains(t, body, "    - ")
}

func TestLocationYAMLProcessor_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    any
		props   map[string]any
		wantErr error
		wantMsg string
	}{
		{
			name:    "wrong body type",
			body:    configMap("ns", "cm", nil),
			props:   map[string]any{PropertyProto: "https", PropertyHost: "example.com"},
			wantErr: ErrUnexpectedBody,
		},
		{
			name:    "nil list",
			body:    (*corev1.ConfigMapList)(nil),
			props:   map[string]any{PropertyProto: "https", PropertyHost: "example.com"},
			wantErr: ErrUnexpectedBody,
		},
		{
			name:    "missing proto",
			body:    &corev1.ConfigMapList{},
			props:   map[string]any{PropertyHost: "example.com"},
			wantErr: ErrMissingProperty,
			wantMsg: PropertyProto,
		},
		{
			name:    "missing host",
			body:    &corev1.ConfigMapList{},
			props:   map[string]any{PropertyProto: "https"},
			wantErr: ErrMissingProperty,
			wantMsg: PropertyHost,
		},
		{
			name:    "empty host",
			body:    &corev1.ConfigMapList{},
			props:   map[string]any{PropertyProto: "https", PropertyHost: ""},
			wantErr: ErrMissingProperty,
			wantMsg: PropertyHost,
		},
		{
			name:    "host not a string",
			body:    &corev1.ConfigMapList{},
			props:   map[string]any{PropertyProto: "https", PropertyHost: 8080},
			wantErr: ErrMissingProperty,
			wantMsg: PropertyHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ex := NewExchange(tt.body)
			for k, v := range tt.props {
				ex.SetProperty(k, v)
			}

			err := LocationYAMLProcessor{}.Process(context.Background(), ex)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, tt.body, ex.Message.Body)
			assert.Empty(t, ex.Message.Header(HeaderContentType))
		})
	}
}

func TestPipeline(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []int
		p := Pipeline{
			ProcessorFunc(func(_ context.Context, _ *Exchange) error {
				order = append(order, 1)
				return nil
			}),
			ProcessorFunc(func(_ context.Context, ex *Exchange) error {
				order = append(order, 2)
				ex.SetProperty(PropertyProto, "https")
				ex.SetProperty(PropertyHost, "example.com")
				return nil
			}),
			LocationYAMLProcessor{},
		}

		ex := NewExchange(&corev1.ConfigMapList{Items: []corev1.ConfigMap{configMap("a", "b", nil)}})
		require.NoError(t, p.Process(context.Background(), ex))
		assert.Equal(t, []int{1, 2}, order)

		body, _ := ex.BodyString()
		assert.Contains(t, body, "    - https://example.com/a/b\n")
	})

	t.Run("stops at first failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		called := false
		p := Pipeline{
			ProcessorFunc(func(context.Context, *Exchange) error { return boom }),
			ProcessorFunc(func(context.Context, *Exchange) error {
				called = true
				return nil
			}),
		}

		err := p.Process(context.Background(), NewExchange(nil))
		require.ErrorIs(t, err, boom)
		assert.False(t, called)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Pipeline{ConfigMapYAMLProcessor{}}.Process(ctx, NewExchange(&corev1.ConfigMap{}))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestProcessors_Concurrent(t *testing.T) {
	t.Parallel()

	proc := LocationYAMLProcessor{Observer: &recordingObserver{}}
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex := NewExchange([]corev1.ConfigMap{configMap("ns", strings.Repeat("c", i+1), nil)})
			ex.SetProperty(PropertyProto, "https")
			ex.SetProperty(PropertyHost, "example.com")
			assert.NoError(t, proc.Process(context.Background(), ex))
		}()
	}
	wg.Wait()
}
