package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/crankfeed/internal/threshold"
)

// Mode selects how the run pipeline schedules engine calls.
type Mode string

const (
	ModeParallel Mode = "parallel"
	ModeSeries   Mode = "series"
)

// Config holds the CLI settings.
type Config struct {
	Patterns   []string      `mapstructure:"patterns"`
	Mode       Mode          `mapstructure:"mode"`
	Report     bool          `mapstructure:"report"`
	ReportType string        `mapstructure:"report_type"`
	ReportFile string        `mapstructure:"report_file"`
	LogLevel   string        `mapstructure:"log_level"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`

	// Options is forwarded verbatim to the engine. It is left untyped so the
	// pipeline factory can reject malformed values.
	Options    any  `mapstructure:"options"`
	OptionsSet bool `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either
// directly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context is injected into requests.
// It defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Definition is a test definition read from an artifact.
type Definition struct {
	Name        string            `mapstructure:"name"`
	TargetURL   string            `mapstructure:"target"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body"`
	Concurrency int               `mapstructure:"concurrency"`
	Rate        int               `mapstructure:"rate"`
	Duration    time.Duration     `mapstructure:"duration"`
	Total       int               `mapstructure:"total"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Retries     int               `mapstructure:"retries"`
	Thresholds  []string          `mapstructure:"thresholds"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if len(c.Patterns) == 0 {
		issues = append(issues, "at least one artifact pattern is required (use --help for usage information)")
	}
	switch c.Mode {
	case ModeParallel, ModeSeries:
	default:
		issues = append(issues, fmt.Sprintf("mode %q is not supported (use parallel or series)", c.Mode))
	}
	if strings.TrimSpace(c.ReportFile) != "" && !c.Report {
		issues = append(issues, "report_file requires report to be enabled")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (d Definition) Validate() error {
	var issues []string

	if strings.TrimSpace(d.TargetURL) == "" {
		issues = append(issues, "target is required")
	}

	// Security warnings for high rate/concurrency
	if d.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.\n", d.Rate)
	}
	if d.Concurrency > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.\n", d.Concurrency)
	}

	if d.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if d.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if d.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if d.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if d.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if d.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if d.Total == 0 && d.Duration == 0 {
		issues = append(issues, "either total or duration must be set")
	}
	if err := threshold.Validate(d.Thresholds); err != nil {
		issues = append(issues, strings.Split(err.Error(), "\n")...)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
