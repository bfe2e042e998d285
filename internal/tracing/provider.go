// Package tracing provides OpenTelemetry initialization, engine invocation
// spans and W3C trace context propagation.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/torosent/crankfeed/internal/config"
)

const (
	// DefaultServiceName is reported when neither the config nor
	// OTEL_SERVICE_NAME names the service.
	DefaultServiceName = "crankfeed"

	instrumentationName = "github.com/torosent/crankfeed"
	userAgent           = "crankfeed"
)

// Provider hands out tracers for the pipeline and the engine.
type Provider struct {
	tp        *sdktrace.TracerProvider
	propagate bool
}

// collector is where spans are exported to.
type collector struct {
	protocol string
	endpoint string // host:port
	insecure bool
}

// Init sets up span export. attrs are stamped on the resource, so every span
// of the process carries them. A disabled config yields a provider whose
// tracers are no-ops.
func Init(ctx context.Context, cfg config.TracingConfig, attrs ...attribute.KeyValue) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	target, err := resolveCollector(cfg)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, serviceName(cfg), attrs...)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	exporter, err := newExporter(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, propagate: cfg.ShouldPropagate()}, nil
}

// Tracer returns the tracer for one component, such as "pipeline" or
// "loadengine". Its instrumentation scope is the module path plus the
// component.
func (p *Provider) Tracer(component string) trace.Tracer {
	name := instrumentationName
	if component != "" {
		name += "/" + component
	}
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// ShouldPropagate reports whether engines inject W3C trace headers into the
// requests they send.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func serviceName(cfg config.TracingConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return DefaultServiceName
}

func newResource(ctx context.Context, service string, attrs ...attribute.KeyValue) (*resource.Resource, error) {
	kvs := append([]attribute.KeyValue{semconv.ServiceName(service)}, attrs...)
	return resource.New(ctx, resource.WithAttributes(kvs...))
}

// samplerFor maps a sample rate to a sampler. 0 samples nothing, 1 samples
// everything.
func samplerFor(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.TraceIDRatioBased(rate), nil
}

// resolveCollector picks the endpoint from the config or
// OTEL_EXPORTER_OTLP_ENDPOINT. A URL endpoint is reduced to its host; the
// http scheme implies an insecure connection.
func resolveCollector(cfg config.TracingConfig) (collector, error) {
	target := collector{
		protocol: strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		endpoint: strings.TrimSpace(cfg.Endpoint),
		insecure: cfg.Insecure,
	}
	if target.protocol == "" {
		target.protocol = "grpc"
	}
	if target.protocol != "grpc" && target.protocol != "http" {
		return collector{}, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", target.protocol)
	}
	if target.endpoint == "" {
		target.endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}

	if strings.Contains(target.endpoint, "://") {
		u, err := url.Parse(target.endpoint)
		if err != nil {
			return collector{}, fmt.Errorf("tracing endpoint %q: %w", target.endpoint, err)
		}
		switch u.Scheme {
		case "http":
			target.insecure = true
		case "https":
		default:
			return collector{}, fmt.Errorf("tracing endpoint %q: unsupported scheme %q", target.endpoint, u.Scheme)
		}
		target.endpoint = u.Host
	}
	if target.endpoint == "" {
		return collector{}, fmt.Errorf("tracing endpoint is empty")
	}
	return target, nil
}

func newExporter(ctx context.Context, target collector) (sdktrace.SpanExporter, error) {
	if target.protocol == "http" {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(target.endpoint),
			otlptracehttp.WithHeaders(map[string]string{"User-Agent": userAgent}),
		}
		if target.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(target.endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
	}
	if target.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}
