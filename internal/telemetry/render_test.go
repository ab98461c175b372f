package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	corev1 "k8s.io/api/core/v1"

	"github.com/eda-mesh/backstage-catalog-api/internal/pipeline"
)

func TestRenderMetrics_Nil(t *testing.T) {
	t.Parallel()

	metrics, err := NewRenderMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	assert.NotPanics(t, func() {
		metrics.RecordRender(context.Background(), pipeline.KindLocation, 3)
	})
}

func TestRenderMetrics_RecordRender(t *testing.T) {
	t.Parallel()

	reader, mp := newTestMeterProvider(t)
	metrics, err := NewRenderMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRender(ctx, pipeline.KindConfigMap, 0)
	metrics.RecordRender(ctx, pipeline.KindConfigMap, 0)
	metrics.RecordRender(ctx, pipeline.KindLocation, 4)

	collected := collect(t, reader)

	sum, ok := collected["catalog_api_documents_rendered_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byKind := map[string]int64{}
	for _, dp := range sum.DataPoints {
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		byKind[kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"configmap": 2, "location": 1}, byKind)

	hist, ok := collected["catalog_api_location_targets"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(4), hist.DataPoints[0].Sum)
}

func TestRenderMetrics_ObservesPipeline(t *testing.T) {
	t.Parallel()

	reader, mp := newTestMeterProvider(t)
	metrics, err := NewRenderMetrics(mp)
	require.NoError(t, err)

	ex := pipeline.NewExchange(&corev1.ConfigMap{Data: map[string]string{"a": "b"}})
	require.NoError(t, pipeline.ConfigMapYAMLProcessor{Observer: metrics}.Process(context.Background(), ex))

	sum, ok := collect(t, reader)["catalog_api_documents_rendered_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}
