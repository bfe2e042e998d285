package loadengine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/crankfeed/internal/config"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/metrics"
	"github.com/torosent/crankfeed/internal/output"
	"github.com/torosent/crankfeed/internal/threshold"
)

const maxLineSize = 1024 * 1024

// Report aggregates the run output read from the configured input. JSON
// reports are returned as the payload; text and yaml reports are written to
// the configured output, or stdout, and return no payload.
func (e *Engine) Report(ctx context.Context, cfg engine.Config) (json.RawMessage, error) {
	in, ok := cfg.Input()
	if !ok {
		return nil, errors.New("report input is required")
	}
	format, err := output.ParseFormat(cfg.Type())
	if err != nil {
		return nil, err
	}

	sum, err := readRuns(in)
	if err != nil {
		return nil, err
	}

	name := sum.name
	if v, ok := cfg[KeyName].(string); ok && v != "" {
		name = v
	} else if test, ok := cfg.Test(); ok && test.Name != "" && name == "" {
		name = test.Name
	}
	exprs := sum.thresholds
	if raw, ok := cfg[KeyThresholds]; ok {
		if exprs, err = config.StringSlice(raw); err != nil {
			return nil, fmt.Errorf("thresholds: %w", err)
		}
	}

	stats := sum.collector.Stats(sum.elapsed())
	results, err := threshold.Check(exprs, stats)
	if err != nil {
		return nil, err
	}
	rep := output.NewReport(name, stats, results)

	e.logger.Debug("report aggregated",
		zap.String("test", name),
		zap.Int64("total", rep.Breakdown.Total),
		zap.Int64("failures", rep.Breakdown.Failures),
	)

	if format == output.FormatJSON {
		return json.Marshal(rep)
	}
	w, ok := cfg.Output()
	if !ok {
		w = e.stdout
	}
	return nil, output.Render(w, format, rep)
}

// runSummary accumulates the runs found in one input.
type runSummary struct {
	collector  *metrics.Collector
	name       string
	thresholds []string
	started    time.Time
	finished   time.Time
}

func (s *runSummary) elapsed() time.Duration {
	if s.started.IsZero() || s.finished.Before(s.started) {
		return 0
	}
	return s.finished.Sub(s.started)
}

func readRuns(r io.Reader) (*runSummary, error) {
	sum := &runSummary{collector: metrics.NewCollector()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}

		switch classify(line) {
		case lineSample:
			var s metrics.Sample
			if err := json.Unmarshal(line, &s); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sum.collector.Record(s)
		case lineHeader:
			var h header
			if err := json.Unmarshal(line, &h); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if sum.name == "" {
				sum.name = h.Name
			}
			sum.thresholds = appendUnique(sum.thresholds, h.Thresholds...)
			if sum.started.IsZero() || (!h.Started.IsZero() && h.Started.Before(sum.started)) {
				sum.started = h.Started
			}
		case lineTrailer:
			var t trailer
			if err := json.Unmarshal(line, &t); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if t.Finished.After(sum.finished) {
				sum.finished = t.Finished
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return sum, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
