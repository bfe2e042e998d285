// Package threshold evaluates the pass/fail assertions of a test definition
// against the statistics of a report.
//
// An assertion reads "metric:aggregate operator limit":
//
//	http_req_duration:p99 < 500     p99 latency below 500ms
//	http_req_duration:p95 <= 1.5s   latency limits accept duration units
//	http_req_failed:rate < 0.01     fewer than 1% failed requests
//	http_req_failed:count == 0
//	http_requests:rate > 100        requests per second
//
// Every evaluated assertion becomes a [Result] entry of the report, and each
// failing one counts as a report failure.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/crankfeed/internal/metrics"
)

const epsilon = 1e-9

// Result is the report entry for one assertion.
type Result struct {
	Expr    string  `json:"threshold" yaml:"threshold"`
	Actual  float64 `json:"actual" yaml:"actual"`
	Limit   float64 `json:"limit" yaml:"limit"`
	Pass    bool    `json:"pass" yaml:"pass"`
	Message string  `json:"message,omitempty" yaml:"message,omitempty"`
}

type gauge func(metrics.Stats) float64

var gauges = map[string]map[string]gauge{
	"http_req_duration": {
		"p50":  func(s metrics.Stats) float64 { return s.P50LatencyMs },
		"p90":  func(s metrics.Stats) float64 { return s.P90LatencyMs },
		"p95":  func(s metrics.Stats) float64 { return s.P95LatencyMs },
		"p99":  func(s metrics.Stats) float64 { return s.P99LatencyMs },
		"avg":  func(s metrics.Stats) float64 { return s.MeanLatencyMs },
		"mean": func(s metrics.Stats) float64 { return s.MeanLatencyMs },
		"min":  func(s metrics.Stats) float64 { return s.MinLatencyMs },
		"max":  func(s metrics.Stats) float64 { return s.MaxLatencyMs },
	},
	"http_req_failed": {
		"count": func(s metrics.Stats) float64 { return float64(s.Failures) },
		"rate": func(s metrics.Stats) float64 {
			if s.Total == 0 {
				return 0
			}
			return float64(s.Failures) / float64(s.Total)
		},
	},
	"http_requests": {
		"count": func(s metrics.Stats) float64 { return float64(s.Total) },
		"rate":  func(s metrics.Stats) float64 { return s.RequestsPerSec },
	},
}

var comparisons = map[string]func(actual, limit float64) bool{
	"<":  func(a, l float64) bool { return a < l },
	"<=": func(a, l float64) bool { return a <= l+epsilon },
	">":  func(a, l float64) bool { return a > l },
	">=": func(a, l float64) bool { return a >= l-epsilon },
	"==": func(a, l float64) bool { return math.Abs(a-l) < epsilon },
	"!=": func(a, l float64) bool { return math.Abs(a-l) >= epsilon },
}

type assertion struct {
	expr  string
	op    string
	limit float64
	read  gauge
}

// Check parses exprs and evaluates them against stats, in order. All parse
// errors are reported together and nothing is evaluated when any occurs.
func Check(exprs []string, stats metrics.Stats) ([]Result, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	asserts := make([]assertion, 0, len(exprs))
	var errs []error
	for i, expr := range exprs {
		a, err := parse(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("threshold[%d]: %w", i, err))
			continue
		}
		asserts = append(asserts, a)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	results := make([]Result, len(asserts))
	for i, a := range asserts {
		results[i] = a.evaluate(stats)
	}
	return results, nil
}

// Validate reports whether every expression parses.
func Validate(exprs []string) error {
	_, err := Check(exprs, metrics.Stats{})
	return err
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func (a assertion) evaluate(stats metrics.Stats) Result {
	actual := a.read(stats)
	pass := comparisons[a.op](actual, a.limit)
	status := "PASS"
	if !pass {
		status = "FAIL"
	}
	return Result{
		Expr:    a.expr,
		Actual:  actual,
		Limit:   a.limit,
		Pass:    pass,
		Message: fmt.Sprintf("%s %s (actual %.2f)", status, a.expr, actual),
	}
}

func parse(expr string) (assertion, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return assertion{}, errors.New("empty threshold")
	}

	start := strings.IndexAny(s, "<>=!")
	if start < 0 {
		return assertion{}, fmt.Errorf("%q: missing comparison operator", s)
	}
	end := start
	for end < len(s) && strings.IndexByte("<>=!", s[end]) >= 0 {
		end++
	}
	op := s[start:end]
	if _, ok := comparisons[op]; !ok {
		return assertion{}, fmt.Errorf("%q: unsupported operator %q", s, op)
	}

	metric, aggregate, ok := strings.Cut(strings.TrimSpace(s[:start]), ":")
	if !ok {
		return assertion{}, fmt.Errorf("%q: want metric:aggregate before the operator", s)
	}
	metric = strings.ToLower(strings.TrimSpace(metric))
	aggregate = strings.ToLower(strings.TrimSpace(aggregate))
	aggregates, ok := gauges[metric]
	if !ok {
		return assertion{}, fmt.Errorf("%q: unsupported metric %q", s, metric)
	}
	read, ok := aggregates[aggregate]
	if !ok {
		return assertion{}, fmt.Errorf("%q: unsupported aggregate %q for %s", s, aggregate, metric)
	}

	limit, err := parseLimit(metric, strings.TrimSpace(s[end:]))
	if err != nil {
		return assertion{}, fmt.Errorf("%q: %w", s, err)
	}
	return assertion{expr: s, op: op, limit: limit, read: read}, nil
}

// parseLimit reads a plain number, or a duration converted to milliseconds
// for latency metrics.
func parseLimit(metric, text string) (float64, error) {
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	if metric == "http_req_duration" {
		if d, err := time.ParseDuration(text); err == nil {
			return float64(d) / float64(time.Millisecond), nil
		}
	}
	return 0, fmt.Errorf("invalid limit %q", text)
}
