package loadengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/crankfeed/internal/config"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/httpclient"
	"github.com/torosent/crankfeed/internal/runner"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// Run loads the test definition at the configured test path, applies the
// remaining configuration entries as overrides and executes the workload.
// Request failures are recorded in the output; Run itself fails only when
// the workload cannot start or the output cannot be written.
func (e *Engine) Run(ctx context.Context, cfg engine.Config) error {
	test, ok := cfg.Test()
	if !ok || test.Path == "" {
		return errors.New("test path is required")
	}
	out, ok := cfg.Output()
	if !ok {
		out = io.Discard
	}

	def, err := config.LoadDefinition(test.Path, definitionOverrides(cfg))
	if err != nil {
		return fmt.Errorf("load %s: %w", test.Path, err)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid definition %s: %w", test.Path, err)
	}
	name := def.Name
	if name == "" {
		name = test.Name
	}

	builder, err := httpclient.NewRequestBuilder(def)
	if err != nil {
		return err
	}
	client := httpclient.NewClient(def.Timeout)
	defer client.CloseIdleConnections()

	runID := ulid.Make().String()
	logger := e.logger.With(zap.String("test", name), zap.String("run", runID))

	var req runner.Requester = &httpclient.Requester{
		Client:    client,
		Builder:   builder,
		Tracer:    e.tracer,
		Propagate: e.propagate,
	}
	req = runner.WithLogging(req, logger)
	req = runner.WithRetry(req, runner.RetryPolicy{
		MaxAttempts: def.Retries + 1,
		DelayFunc:   backoff,
	})

	lines := newLineWriter(out)
	lines.write(header{Run: runID, Name: name, Thresholds: def.Thresholds, Started: time.Now().UTC()})
	if err := lines.Err(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Debug("workload started",
		zap.String("target", builder.Target()),
		zap.Int("concurrency", def.Concurrency),
		zap.Int("rate", def.Rate),
		zap.Int("total", def.Total),
		zap.Duration("duration", def.Duration),
	)

	result := runner.New(runner.Options{
		Concurrency:   def.Concurrency,
		TotalRequests: def.Total,
		Duration:      def.Duration,
		RatePerSecond: def.Rate,
		Requester:     req,
		Observe: func(latency time.Duration, err error) {
			lines.sample(runID, latency, err)
		},
	}).Run(ctx)

	lines.write(trailer{Run: runID, Finished: time.Now().UTC()})

	logger.Info("workload finished",
		zap.Int64("total", result.Total),
		zap.Int64("errors", result.Errors),
		zap.Duration("elapsed", result.Duration),
	)

	if err := lines.Err(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if closer, ok := out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// backoff doubles the delay per attempt up to retryMaxDelay.
func backoff(attempt int, _ error) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay <= 0 || delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}
