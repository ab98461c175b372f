package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eda-mesh/backstage-catalog-api/internal/pipeline"
)

var _ pipeline.RenderObserver = (*RenderMetrics)(nil)

// RenderMetrics counts rendered catalog documents and the size of Location
// documents.
type RenderMetrics struct {
	documentsTotal  metric.Int64Counter
	locationTargets metric.Int64Histogram
}

// NewRenderMetrics creates the render instruments. A nil provider yields nil metrics.
func NewRenderMetrics(provider metric.MeterProvider) (*RenderMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(InstrumentationName + "/render")

	documentsTotal, err := meter.Int64Counter(
		"catalog_api_documents_rendered_total",
		metric.WithDescription("Number of catalog documents rendered"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	locationTargets, err := meter.Int64Histogram(
		"catalog_api_location_targets",
		metric.WithDescription("Number of targets listed in each Location document"),
		metric.WithUnit("{target}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &RenderMetrics{
		documentsTotal:  documentsTotal,
		locationTargets: locationTargets,
	}, nil
}

// RecordRender records one rendered document of the given kind.
// targets is only recorded for Location documents.
func (m *RenderMetrics) RecordRender(ctx context.Context, kind string, targets int) {
	if m == nil {
		return
	}

	m.documentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	if kind == pipeline.KindLocation {
		m.locationTargets.Record(ctx, int64(targets))
	}
}
