// Package loadengine is the built-in HTTP load engine. It implements
// engine.Engine: Run executes the test definition named by the test
// reference and streams one JSON line per request to the output; Report
// aggregates those lines into a summary.
//
// The run output starts with a header line per run, followed by samples:
//
//	{"run":"01J...","name":"checkout","thresholds":["http_req_duration:p99 < 500"],"started":"..."}
//	{"run":"01J...","seq":1,"latency_us":1520}
//	{"run":"01J...","seq":2,"latency_us":980,"status":503,"error":"HTTP 503"}
//	{"run":"01J...","finished":"..."}
package loadengine

import (
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/crankfeed/internal/engine"
)

// Option keys understood in addition to the test definition fields.
const (
	// KeyThresholds replaces the thresholds recorded by the run.
	KeyThresholds = "thresholds"
	// KeyName overrides the report name.
	KeyName = "name"
)

// Engine runs HTTP load tests.
type Engine struct {
	logger    *zap.Logger
	tracer    trace.Tracer
	propagate bool
	stdout    io.Writer
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for run and request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer enables a span per request. With propagate set, W3C trace
// headers are injected into every request.
func WithTracer(tracer trace.Tracer, propagate bool) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
		e.propagate = propagate
	}
}

// WithStdout sets where text and yaml reports go when no output writer is
// configured.
func WithStdout(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.stdout = w
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider().Tracer("crankfeed/loadengine"),
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// definitionOverrides returns the configuration entries that are not
// well-known engine keys. They override the test definition.
func definitionOverrides(cfg engine.Config) map[string]interface{} {
	overrides := make(map[string]interface{}, len(cfg))
	for k, v := range cfg {
		switch k {
		case engine.KeyTest, engine.KeyOutput, engine.KeyInput, engine.KeyType:
			continue
		}
		overrides[k] = v
	}
	return overrides
}
