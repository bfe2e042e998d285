package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/crankfeed/internal/metrics"
	"github.com/torosent/crankfeed/internal/threshold"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a report type option to a Format. An empty value means
// text.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report type %q", value)
	}
}

// Report is the structured summary of one test's samples.
type Report struct {
	Name        string             `json:"name" yaml:"name"`
	Breakdown   Breakdown          `json:"breakdown" yaml:"breakdown"`
	Latency     Latency            `json:"latency" yaml:"latency"`
	Errors      map[string]int     `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusCodes map[string]int     `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	Thresholds  []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Breakdown counts outcomes. Failures includes failed thresholds and is
// omitted when nothing failed.
type Breakdown struct {
	Total     int64 `json:"total" yaml:"total"`
	Successes int64 `json:"successes" yaml:"successes"`
	Failures  int64 `json:"failures,omitempty" yaml:"failures,omitempty"`
	Runs      int   `json:"runs" yaml:"runs"`
}

// Latency holds the latency figures in milliseconds.
type Latency struct {
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64 `json:"p90_ms" yaml:"p90_ms"`
	P95Ms  float64 `json:"p95_ms" yaml:"p95_ms"`
	P99Ms  float64 `json:"p99_ms" yaml:"p99_ms"`
}

// NewReport assembles a report from aggregated stats and threshold results.
func NewReport(name string, stats metrics.Stats, results []threshold.Result) Report {
	return Report{
		Name: name,
		Breakdown: Breakdown{
			Total:     stats.Total,
			Successes: stats.Successes,
			Failures:  stats.Failures + int64(threshold.Failed(results)),
			Runs:      stats.Runs,
		},
		Latency: Latency{
			MinMs:  stats.MinLatencyMs,
			MaxMs:  stats.MaxLatencyMs,
			MeanMs: stats.MeanLatencyMs,
			P50Ms:  stats.P50LatencyMs,
			P90Ms:  stats.P90LatencyMs,
			P95Ms:  stats.P95LatencyMs,
			P99Ms:  stats.P99LatencyMs,
		},
		Errors:      stats.Errors,
		StatusCodes: stats.StatusCodes,
		Thresholds:  results,
	}
}

// Render writes r to w in the given format.
func Render(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		return PrintJSONReport(w, r)
	case FormatYAML:
		return PrintYAMLReport(w, r)
	default:
		PrintReport(w, r)
		return nil
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "\n--- %s ---\n", r.Name)
	fmt.Fprintf(w, "Total Requests:    %d\n", r.Breakdown.Total)
	fmt.Fprintf(w, "Successful:        %d\n", r.Breakdown.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", r.Breakdown.Failures)
	fmt.Fprintf(w, "Runs:              %d\n", r.Breakdown.Runs)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %.2fms\n", r.Latency.MinMs)
	fmt.Fprintf(w, "  Max:             %.2fms\n", r.Latency.MaxMs)
	fmt.Fprintf(w, "  Mean:            %.2fms\n", r.Latency.MeanMs)
	fmt.Fprintf(w, "  P50:             %.2fms\n", r.Latency.P50Ms)
	fmt.Fprintf(w, "  P90:             %.2fms\n", r.Latency.P90Ms)
	fmt.Fprintf(w, "  P95:             %.2fms\n", r.Latency.P95Ms)
	fmt.Fprintf(w, "  P99:             %.2fms\n", r.Latency.P99Ms)

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeBuckets(w, r.Errors, "  ")
	}
	if len(r.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeBuckets(w, r.StatusCodes, "  ")
	}
	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeBuckets(w io.Writer, counts map[string]int, indent string) {
	for _, row := range metrics.SortBuckets(counts) {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Label, row.Count)
	}
}
