package app

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes/mocks"
	"github.com/eda-mesh/backstage-catalog-api/internal/telemetry"
)

func noopTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	tel, err := telemetry.New(context.Background(), nil)
	require.NoError(t, err)
	return tel
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestCatalogApp_StartStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	source := mocks.NewMockConfigMapSource(ctrl)
	source.EXPECT().Ready(gomock.Any()).Return(nil).AnyTimes()
	source.EXPECT().Get(gomock.Any(), "default", "team-a").Return(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "team-a"},
		Data:       map[string]string{"component": "kind: Component"},
	}, nil)
	source.EXPECT().List(gomock.Any()).Return(&corev1.ConfigMapList{Items: []corev1.ConfigMap{
		{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "team-a"}},
	}}, nil)

	app, err := NewCatalogApp(context.Background(),
		WithAddress("127.0.0.1:0"),
		WithSource(source),
		WithTelemetry(noopTelemetry(t)),
	)
	require.NoError(t, err)

	addr, err := app.Listen()
	require.NoError(t, err)
	base := "http://" + addr.String()

	done := make(chan error, 1)
	go func() { done <- app.Start() }()

	status, body := get(t, base+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "healthy")

	status, body = get(t, base+"/default/team-a")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "kind: Component\n", body)

	status, body = get(t, base+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "    - http://"+addr.String()+"/default/team-a\n")

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestCatalogApp_StartFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	first, err := NewCatalogApp(context.Background(),
		WithAddress("127.0.0.1:0"),
		WithSource(nil),
		WithTelemetry(noopTelemetry(t)),
	)
	require.NoError(t, err)
	addr, err := first.Listen()
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Stop(time.Second) })

	second, err := NewCatalogApp(context.Background(),
		WithAddress(addr.String()),
		WithSource(nil),
		WithTelemetry(noopTelemetry(t)),
	)
	require.NoError(t, err)

	err = second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestCatalogApp_Listen_Idempotent(t *testing.T) {
	t.Parallel()

	app, err := NewCatalogApp(context.Background(),
		WithAddress("127.0.0.1:0"),
		WithSource(nil),
		WithTelemetry(noopTelemetry(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	a1, err := app.Listen()
	require.NoError(t, err)
	a2, err := app.Listen()
	require.NoError(t, err)
	assert.Equal(t, a1.String(), a2.String())
}
