package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/crankfeed/internal/artifact"
	"github.com/torosent/crankfeed/internal/channel"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/options"
	"github.com/torosent/crankfeed/internal/pipeline"
	"github.com/torosent/crankfeed/internal/pluginerr"
)

func TestReportConfigUsesContentWithoutOutput(t *testing.T) {
	content := []byte("name: checkout\ntarget: http://localhost\n")
	a := artifact.NewBuffer("perf/checkout.yaml", content)

	cfg := pipeline.ReportConfig(a, options.Options{"rate": 5})
	assert.Equal(t, engine.ReportTypeJSON, cfg.Type())
	assert.Equal(t, 5, cfg["rate"])

	r, ok := cfg.Input()
	require.True(t, ok)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReportConfigPrefersAttachedOutput(t *testing.T) {
	a := artifact.NewBuffer("perf/checkout.yaml", []byte("definition"))
	out := channel.New()
	_, err := out.Write([]byte("run output"))
	require.NoError(t, err)
	require.NoError(t, out.Close())
	a.Output = out

	cfg := pipeline.ReportConfig(a, nil)
	r, ok := cfg.Input()
	require.True(t, ok)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "run output", string(got))
	assert.Nil(t, a.Output)
}

func TestReportConfigOptionsOverrideType(t *testing.T) {
	a := artifact.NewBuffer("perf/checkout.yaml", []byte("x"))
	cfg := pipeline.ReportConfig(a, options.Options{engine.KeyType: "text"})
	assert.Equal(t, "text", cfg.Type())
}

func TestRunConfig(t *testing.T) {
	a := artifact.NewBuffer("perf/checkout.yaml", []byte("x"))
	var sb strings.Builder
	cfg := pipeline.RunConfig(a, &sb, options.Options{"duration": "1h"})

	ref, ok := cfg.Test()
	require.True(t, ok)
	assert.Equal(t, engine.TestRef{Path: "perf/checkout.yaml", Name: "checkout"}, ref)
	w, ok := cfg.Output()
	require.True(t, ok)
	assert.Same(t, &sb, w)
	assert.Equal(t, "1h", cfg["duration"])
}

func TestRunOnArtifactClosesOutput(t *testing.T) {
	eng := engine.Func{RunFunc: func(_ context.Context, cfg engine.Config) error {
		w, _ := cfg.Output()
		_, err := io.WriteString(w, "line\n")
		return err
	}}
	a := artifact.NewBuffer("perf/a.yaml", []byte("x"))

	err := <-pipeline.RunOnArtifact(context.Background(), eng, a, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Output)

	got, err := io.ReadAll(a.Output)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(got))
}

func TestRunOnArtifactWrapsFailure(t *testing.T) {
	cause := errors.New("definition not found")
	eng := engine.Func{RunFunc: func(context.Context, engine.Config) error { return cause }}
	a := artifact.NewBuffer("perf/a.yaml", []byte("x"))

	err := <-pipeline.RunOnArtifact(context.Background(), eng, a, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, pluginerr.ErrInvocation)

	var tagged *pluginerr.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, pluginerr.Plugin, tagged.Plugin)
	assert.Equal(t, cause.Error(), tagged.Message)
	assert.Same(t, cause, tagged.Cause)

	// readers of the output see the run failure
	_, err = io.ReadAll(a.Output)
	assert.ErrorIs(t, err, cause)
}

func TestRunOnArtifactIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := engine.Func{RunFunc: func(ctx context.Context, _ engine.Config) error { return ctx.Err() }}

	err := <-pipeline.RunOnArtifact(ctx, eng, artifact.NewBuffer("perf/a.yaml", nil), nil)
	assert.NoError(t, err)
}

func TestCheckReport(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantDetails any
	}{
		{"missing report", "", false, nil},
		{"no breakdown", `{"total":3}`, false, nil},
		{"no failures", `{"breakdown":{"successes":150}}`, false, nil},
		{"failures", `{"breakdown":{"failures":12}}`, true, float64(12)},
		{"null failures", `{"breakdown":{"failures":null}}`, true, nil},
		{"false failures", `{"breakdown":{"failures":false}}`, true, false},
		{"object failures", `{"breakdown":{"failures":{"http":2}}}`, true, map[string]any{"http": float64(2)}},
		{"invalid json", `{"breakdown":`, false, nil},
		{"plain text", `performance tests failed: failures=3`, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pipeline.CheckReport(json.RawMessage(tt.raw), nil)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var tagged *pluginerr.Error
			require.ErrorAs(t, err, &tagged)
			assert.Equal(t, "performance tests failed", tagged.Message)
			assert.Equal(t, tt.wantDetails, tagged.Details)
			assert.Nil(t, tagged.Cause)
		})
	}
}

func TestCheckReportInvocationError(t *testing.T) {
	cause := errors.New("report crashed")
	err := pipeline.CheckReport(json.RawMessage(`{"breakdown":{"failures":1}}`), cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, pluginerr.ErrInvocation)
	assert.NotErrorIs(t, err, pluginerr.ErrReportFailure)
}
