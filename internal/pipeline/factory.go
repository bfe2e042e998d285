package pipeline

import (
	"errors"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/options"
	"github.com/torosent/crankfeed/internal/pluginerr"
)

// Factory creates streams bound to one engine.
type Factory struct {
	engine engine.Engine
	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used by every stream. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTracer sets the tracer for invocation spans. Defaults to a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(f *Factory) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

// New creates a Factory for eng.
func New(eng engine.Engine, opts ...Option) *Factory {
	f := &Factory{
		engine: eng,
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider().Tracer("crankfeed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run returns a parallel run stream. opts must be absent (nil) or a map
// keyed by strings; it is merged into every run configuration.
func (f *Factory) Run(opts any) (*Stream, error) {
	return f.stream(Parallel, "run", opts)
}

// RunSeries returns a serial run stream.
func (f *Factory) RunSeries(opts any) (*Stream, error) {
	return f.stream(Serial, "series", opts)
}

// Report returns a report stream.
func (f *Factory) Report(opts any) (*Stream, error) {
	return f.stream(Reporter, "report", opts)
}

func (f *Factory) stream(d Discipline, method string, raw any) (*Stream, error) {
	opts, err := options.From(raw)
	if err != nil {
		var tagged *pluginerr.Error
		if errors.As(err, &tagged) {
			tagged.Method = method
		}
		f.logger.Error("invalid options", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	return newStream(d, f.engine, opts.Clone(), f.logger, f.tracer), nil
}
