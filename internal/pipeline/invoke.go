package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/tidwall/gjson"

	"github.com/torosent/crankfeed/internal/artifact"
	"github.com/torosent/crankfeed/internal/channel"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/options"
	"github.com/torosent/crankfeed/internal/pluginerr"
)

// ReportFailedMessage is the message of errors produced for failing reports.
const ReportFailedMessage = "performance tests failed"

// failuresPath locates the failure indicator inside a JSON report.
const failuresPath = "breakdown.failures"

// ReportResult is the completion of a report invocation.
type ReportResult struct {
	Report json.RawMessage
	Err    error
}

// RunConfig builds the engine configuration for running a. Caller options
// override the well-known keys.
func RunConfig(a *artifact.Artifact, out io.Writer, opts options.Options) engine.Config {
	cfg := engine.Config{
		engine.KeyTest:   engine.TestRef{Path: a.Location, Name: a.Name},
		engine.KeyOutput: out,
	}
	return cfg.Merge(opts)
}

// ReportConfig builds the engine configuration for reporting on a. The input
// is the output attached by a previous run, or the artifact content when no
// run happened in this process. An attached output is detached so it is
// consumed once.
func ReportConfig(a *artifact.Artifact, opts options.Options) engine.Config {
	var in io.Reader
	if a.Output != nil {
		in = a.Output
		a.Output = nil
	} else {
		in = a.ContentReader()
	}
	cfg := engine.Config{
		engine.KeyType:  engine.ReportTypeJSON,
		engine.KeyInput: in,
	}
	return cfg.Merge(opts)
}

// RunOnArtifact attaches a fresh output channel to a and starts the engine
// run in the background. The returned channel delivers exactly one value:
// nil on success, or an invocation error. The run is not tied to ctx
// cancellation.
func RunOnArtifact(ctx context.Context, eng engine.Engine, a *artifact.Artifact, opts options.Options) <-chan error {
	done, _ := invokeRun(ctx, eng, a, opts)
	return done
}

// invokeRun is RunOnArtifact that also returns a channel closed right before
// the engine is called.
func invokeRun(ctx context.Context, eng engine.Engine, a *artifact.Artifact, opts options.Options) (<-chan error, <-chan struct{}) {
	out := channel.New()
	a.Output = out
	cfg := RunConfig(a, out, opts)

	done := make(chan error, 1)
	started := make(chan struct{})
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		close(started)
		err := eng.Run(ctx, cfg)
		if err != nil {
			out.CloseWithError(err)
		} else {
			out.Close()
		}
		done <- invocationError("run", err)
	}()
	return done, started
}

// ReportOnArtifact starts the engine report for a in the background. The
// returned channel delivers exactly one result.
func ReportOnArtifact(ctx context.Context, eng engine.Engine, a *artifact.Artifact, opts options.Options) <-chan ReportResult {
	cfg := ReportConfig(a, opts)

	done := make(chan ReportResult, 1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		raw, err := eng.Report(ctx, cfg)
		done <- ReportResult{Report: raw, Err: invocationError("report", err)}
	}()
	return done
}

// CheckReport applies the report error rule: an invocation error is
// returned as is; otherwise a report whose breakdown defines failures, with
// any value including null or zero, becomes a report failure carrying that
// value as details. A missing report or breakdown is a success.
func CheckReport(raw json.RawMessage, err error) error {
	if err != nil {
		return invocationError("report", err)
	}
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	failures := gjson.GetBytes(raw, failuresPath)
	if !failures.Exists() {
		return nil
	}
	return pluginerr.New(pluginerr.Fields{
		Kind:    pluginerr.KindReportFailure,
		Message: ReportFailedMessage,
		Details: failures.Value(),
		Method:  "report",
	})
}

func invocationError(method string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *pluginerr.Error
	if errors.As(err, &tagged) {
		return err
	}
	return pluginerr.New(pluginerr.Fields{
		Kind:   pluginerr.KindInvocation,
		Cause:  err,
		Method: method,
	})
}
