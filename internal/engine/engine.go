// Package engine describes the stress-testing engine crankfeed drives. Only
// the two entry points are consumed: Run executes a test definition and
// streams its raw output, Report turns that output into a structured result.
package engine

import (
	"context"
	"encoding/json"
	"io"
)

// Well-known configuration keys.
const (
	KeyTest   = "test"
	KeyOutput = "output"
	KeyInput  = "input"
	KeyType   = "type"
)

// ReportTypeJSON asks Report for a structured payload.
const ReportTypeJSON = "json"

// Engine executes and reports on test definitions. Both calls block until
// the engine completes.
type Engine interface {
	Run(ctx context.Context, cfg Config) error
	// Report returns the structured payload for JSON reports. Other report
	// types may return a nil payload.
	Report(ctx context.Context, cfg Config) (json.RawMessage, error)
}

// TestRef identifies the test definition for a run.
type TestRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Config is the engine configuration: the well-known keys merged with caller
// options, which win on collision.
type Config map[string]any

// Merge copies every entry of opts over c and returns c.
func (c Config) Merge(opts map[string]any) Config {
	for k, v := range opts {
		c[k] = v
	}
	return c
}

// Test returns the test reference, if one of a supported shape is present.
func (c Config) Test() (TestRef, bool) {
	switch v := c[KeyTest].(type) {
	case TestRef:
		return v, true
	case *TestRef:
		if v != nil {
			return *v, true
		}
	case map[string]any:
		path, _ := v["path"].(string)
		name, _ := v["name"].(string)
		return TestRef{Path: path, Name: name}, path != "" || name != ""
	}
	return TestRef{}, false
}

// Output returns the writer the run streams into.
func (c Config) Output() (io.Writer, bool) {
	w, ok := c[KeyOutput].(io.Writer)
	return w, ok && w != nil
}

// Input returns the reader a report consumes.
func (c Config) Input() (io.Reader, bool) {
	r, ok := c[KeyInput].(io.Reader)
	return r, ok && r != nil
}

// Type returns the report type.
func (c Config) Type() string {
	s, _ := c[KeyType].(string)
	return s
}

// Func adapts plain functions to Engine.
type Func struct {
	RunFunc    func(ctx context.Context, cfg Config) error
	ReportFunc func(ctx context.Context, cfg Config) (json.RawMessage, error)
}

func (f Func) Run(ctx context.Context, cfg Config) error {
	if f.RunFunc == nil {
		return nil
	}
	return f.RunFunc(ctx, cfg)
}

func (f Func) Report(ctx context.Context, cfg Config) (json.RawMessage, error) {
	if f.ReportFunc == nil {
		return nil, nil
	}
	return f.ReportFunc(ctx, cfg)
}
