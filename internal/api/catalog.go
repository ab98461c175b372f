package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/eda-mesh/backstage-catalog-api/internal/kubernetes"
	"github.com/eda-mesh/backstage-catalog-api/internal/pipeline"
	"github.com/eda-mesh/backstage-catalog-api/internal/render"
)

const (
	headerForwardedProto = "X-Forwarded-Proto"
	headerForwardedHost  = "X-Forwarded-Host"

	bodyNotFound    = "Error: Not Found"
	bodyBadRequest  = "Error: Bad Request"
	bodyInternal    = "Error: Internal Server Error"
	bodyUnavailable = "Error: Service Unavailable"
)

var errSourceUnavailable = errors.New("kubernetes client not configured")

type catalogRoutes struct {
	source   kubernetes.ConfigMapSource
	location LocationOptions
	observer pipeline.RenderObserver
}

// getLocation handles GET /, answering with a Location manifest that lists
// one target per exported ConfigMap.
func (c *catalogRoutes) getLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c.source == nil {
		writeError(w, r, errSourceUnavailable)
		return
	}

	list, err := c.source.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	target := detectTarget(r, c.location)
	exchange := pipeline.NewExchange(list)
	exchange.SetProperty(pipeline.PropertyProto, target.Proto)
	exchange.SetProperty(pipeline.PropertyHost, target.Host)

	steps := pipeline.Pipeline{pipeline.LocationYAMLProcessor{Observer: c.observer}}
	if err := steps.Process(ctx, exchange); err != nil {
		writeError(w, r, err)
		return
	}

	slog.DebugContext(ctx, "Rendered location",
		"targets", len(list.Items),
		"proto", target.Proto,
		"host", target.Host,
	)
	writeExchange(w, exchange)
}

// getConfigMap handles GET /{namespace}/{configmap}, answering with the
// ConfigMap data rendered as YAML.
func (c *catalogRoutes) getConfigMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	namespace, err := urlParam(r, "namespace", validation.IsDNS1123Label)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := urlParam(r, "configmap", validation.IsDNS1123Subdomain)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if c.source == nil {
		writeError(w, r, errSourceUnavailable)
		return
	}

	cm, err := c.source.Get(ctx, namespace, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	exchange := pipeline.NewExchange(cm)
	steps := pipeline.Pipeline{pipeline.ConfigMapYAMLProcessor{Observer: c.observer}}
	if err := steps.Process(ctx, exchange); err != nil {
		writeError(w, r, err)
		return
	}
	writeExchange(w, exchange)
}

type invalidParamError struct {
	param  string
	reason string
}

func (e *invalidParamError) Error() string {
	return "invalid " + e.param + ": " + e.reason
}

// urlParam returns the decoded chi URL parameter after checking it against
// a Kubernetes name validator.
func urlParam(r *http.Request, param string, validate func(string) []string) (string, error) {
	value, err := url.PathUnescape(chi.URLParam(r, param))
	if err != nil {
		return "", &invalidParamError{param: param, reason: "invalid URL encoding"}
	}
	if msgs := validate(value); len(msgs) > 0 {
		return "", &invalidParamError{param: param, reason: strings.Join(msgs, "; ")}
	}
	return value, nil
}

// detectTarget picks the scheme and host of Location targets. Configured
// values win, then X-Forwarded-* headers when trusted, then the request itself.
func detectTarget(r *http.Request, opts LocationOptions) render.Target {
	target := render.Target{Proto: opts.Proto, Host: opts.Host}

	if target.Proto == "" && opts.TrustForwardedHeaders {
		target.Proto = firstHeaderValue(r, headerForwardedProto)
	}
	if target.Proto == "" {
		target.Proto = "http"
		if r.TLS != nil {
			target.Proto = "https"
		}
	}

	if target.Host == "" && opts.TrustForwardedHeaders {
		target.Host = firstHeaderValue(r, headerForwardedHost)
	}
	if target.Host == "" {
		target.Host = r.Host
	}

	return target
}

// firstHeaderValue returns the first entry of a possibly comma separated
// header, as appended by chained proxies.
func firstHeaderValue(r *http.Request, name string) string {
	value, _, _ := strings.Cut(r.Header.Get(name), ",")
	return strings.TrimSpace(value)
}

func writeExchange(w http.ResponseWriter, exchange *pipeline.Exchange) {
	body, ok := exchange.BodyString()
	if !ok {
		slog.Error("Pipeline produced a non-text body", "type", fmt.Sprintf("%T", exchange.Message.Body))
		http.Error(w, bodyInternal, http.StatusInternalServerError)
		return
	}

	for key, value := range exchange.Headers() {
		w.Header().Set(key, value)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// writeError maps err to a status code and a plain text body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var paramErr *invalidParamError

	switch {
	case apierrors.IsNotFound(err):
		slog.DebugContext(ctx, "ConfigMap not found", "path", r.URL.Path)
		http.Error(w, bodyNotFound, http.StatusNotFound)
	case errors.As(err, &paramErr):
		slog.DebugContext(ctx, "Rejected request", "path", r.URL.Path, "error", err)
		http.Error(w, bodyBadRequest, http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrMissingProperty),
		errors.Is(err, pipeline.ErrUnexpectedBody),
		errors.Is(err, render.ErrMissingProto),
		errors.Is(err, render.ErrMissingHost):
		slog.ErrorContext(ctx, "Failed to render catalog document", "path", r.URL.Path, "error", err)
		http.Error(w, bodyInternal, http.StatusInternalServerError)
	default:
		slog.ErrorContext(ctx, "Kubernetes request failed", "path", r.URL.Path, "error", err)
		http.Error(w, bodyUnavailable, http.StatusServiceUnavailable)
	}
}
