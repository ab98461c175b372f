package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"

	"github.com/eda-mesh/backstage-catalog-api/internal/render"
)

var (
	// ErrUnexpectedBody is returned when the exchange body has the wrong type
	ErrUnexpectedBody = errors.New("unexpected message body")
	// ErrMissingProperty is returned when a required exchange property is absent
	ErrMissingProperty = errors.New("missing exchange property")
)

// Processor is a single step applied to an exchange.
type Processor interface {
	Process(ctx context.Context, exchange *Exchange) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, exchange *Exchange) error

// Process calls f(ctx, exchange).
func (f ProcessorFunc) Process(ctx context.Context, exchange *Exchange) error {
	return f(ctx, exchange)
}

// Pipeline runs processors in order, stopping at the first failure.
type Pipeline []Processor

// Process implements Processor.
func (p Pipeline) Process(ctx context.Context, exchange *Exchange) error {
	for i, step := range p {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Process(ctx, exchange); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// RenderObserver is notified after a document is rendered.
type RenderObserver interface {
	RecordRender(ctx context.Context, kind string, targets int)
}

const (
	// KindConfigMap labels documents rendered from a single ConfigMap
	KindConfigMap = "configmap"
	// KindLocation labels Location manifests
	KindLocation = "location"
)

// ConfigMapYAMLProcessor replaces a ConfigMap body with its data rendered as YAML.
// A nil *ConfigMap renders like a ConfigMap without data.
type ConfigMapYAMLProcessor struct {
	Observer RenderObserver
}

// Process implements Processor.
func (p ConfigMapYAMLProcessor) Process(ctx context.Context, exchange *Exchange) error {
	var cm *corev1.ConfigMap
	switch body := exchange.Message.Body.(type) {
	case *corev1.ConfigMap:
		cm = body
	case corev1.ConfigMap:
		cm = &body
	default:
		return fmt.Errorf("%w: want ConfigMap, got %T", ErrUnexpectedBody, exchange.Message.Body)
	}

	if cm != nil && len(cm.Data) == 0 {
		slog.DebugContext(ctx, "ConfigMap has no data entries",
			"namespace", cm.Namespace,
			"name", cm.Name,
		)
	}

	exchange.Message.Body = render.ConfigMap(cm)
	exchange.Message.SetHeader(HeaderContentType, render.ContentTypeYAML)

	if p.Observer != nil {
		p.Observer.RecordRender(ctx, KindConfigMap, 0)
	}
	return nil
}

// LocationYAMLProcessor replaces a ConfigMap list body with a Backstage
// Location manifest. The target scheme and host are read from the proto and
// host exchange properties. A nil *ConfigMapList is rejected with
// ErrUnexpectedBody.
type LocationYAMLProcessor struct {
	Observer RenderObserver
}

// Process implements Processor.
func (p LocationYAMLProcessor) Process(ctx context.Context, exchange *Exchange) error {
	var items []corev1.ConfigMap
	switch body := exchange.Message.Body.(type) {
	case *corev1.ConfigMapList:
		if body == nil {
			return fmt.Errorf("%w: nil ConfigMapList", ErrUnexpectedBody)
		}
		items = body.Items
	case corev1.ConfigMapList:
		items = body.Items
	case []corev1.ConfigMap:
		items = body
	default:
		return fmt.Errorf("%w: want ConfigMapList, got %T", ErrUnexpectedBody, exchange.Message.Body)
	}

	target, err := targetFromProperties(exchange)
	if err != nil {
		return err
	}

	doc, err := render.Location(items, target)
	if err != nil {
		return fmt.Errorf("failed to render location: %w", err)
	}

	exchange.Message.Body = doc
	exchange.Message.SetHeader(HeaderContentType, render.ContentTypeYAML)

	if p.Observer != nil {
		p.Observer.RecordRender(ctx, KindLocation, len(items))
	}
	return nil
}

func targetFromProperties(exchange *Exchange) (render.Target, error) {
	proto, ok := exchange.StringProperty(PropertyProto)
	if !ok || proto == "" {
		return render.Target{}, fmt.Errorf("%w: %s", ErrMissingProperty, PropertyProto)
	}
	host, ok := exchange.StringProperty(PropertyHost)
	if !ok || host == "" {
		return render.Target{}, fmt.Errorf("%w: %s", ErrMissingProperty, PropertyHost)
	}
	return render.Target{Proto: proto, Host: host}, nil
}
