package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/crankfeed/internal/metrics"
	"github.com/torosent/crankfeed/internal/threshold"
)

func sampleStats() metrics.Stats {
	c := metrics.NewCollector()
	for i := 1; i <= 10; i++ {
		c.Record(metrics.Sample{Run: "r1", Seq: int64(i), LatencyUs: int64(i) * 1000, Status: 200})
	}
	c.Record(metrics.Sample{Run: "r1", Seq: 11, LatencyUs: 500, Status: 503, Error: "HTTP 503"})
	return c.Stats(time.Second)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":      FormatText,
		"text":  FormatText,
		"JSON":  FormatJSON,
		" yaml": FormatYAML,
		"yml":   FormatYAML,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseFormat("html"); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}

func TestNewReportCountsThresholdFailures(t *testing.T) {
	stats := sampleStats()
	results := []threshold.Result{
		{Expr: "http_req_duration:p99 < 1", Pass: false},
		{Expr: "http_requests:total > 1", Pass: true},
	}

	r := NewReport("checkout", stats, results)
	if r.Breakdown.Total != 11 || r.Breakdown.Successes != 10 {
		t.Fatalf("breakdown = %+v", r.Breakdown)
	}
	if r.Breakdown.Failures != 2 {
		t.Errorf("failures = %d, want 2 (one request, one threshold)", r.Breakdown.Failures)
	}
	if r.Errors["HTTP 503"] != 1 {
		t.Errorf("errors = %v", r.Errors)
	}
}

func TestJSONReportOmitsFailuresWhenClean(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Sample{Run: "r1", LatencyUs: 1000})
	r := NewReport("clean", c.Stats(0), nil)

	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, r); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	breakdown, ok := parsed["breakdown"].(map[string]any)
	if !ok {
		t.Fatalf("missing breakdown: %s", buf.String())
	}
	if _, ok := breakdown["failures"]; ok {
		t.Errorf("failures should be omitted: %s", buf.String())
	}
	if parsed["name"] != "clean" {
		t.Errorf("name = %v", parsed["name"])
	}
	if _, ok := parsed["thresholds"]; ok {
		t.Errorf("thresholds should be omitted when none are defined")
	}
}

func TestPrintReportText(t *testing.T) {
	r := NewReport("checkout", sampleStats(), []threshold.Result{
		{Expr: "http_req_failed:rate < 0.5", Pass: true, Message: "PASS http_req_failed:rate < 0.5: 0.09 < 0.50"},
	})

	var buf bytes.Buffer
	if err := Render(&buf, FormatText, r); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"--- checkout ---", "Total Requests:    11", "Failed:            1", "HTTP 503: 1", "503: 1", "PASS http_req_failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintYAMLReport(t *testing.T) {
	r := NewReport("checkout", sampleStats(), nil)

	var buf bytes.Buffer
	if err := Render(&buf, FormatYAML, r); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var parsed struct {
		Name      string `yaml:"name"`
		Breakdown struct {
			Total    int `yaml:"total"`
			Failures int `yaml:"failures"`
		} `yaml:"breakdown"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid yaml: %v\n%s", err, buf.String())
	}
	if parsed.Name != "checkout" || parsed.Breakdown.Total != 11 || parsed.Breakdown.Failures != 1 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestAppendReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.jsonl")

	if err := AppendReport(context.Background(), path, json.RawMessage("{\n  \"name\": \"a\"\n}")); err != nil {
		t.Fatalf("AppendReport: %v", err)
	}
	if err := AppendReport(context.Background(), path, json.RawMessage(`{"name":"b"}`)); err != nil {
		t.Fatalf("AppendReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "{\"name\":\"a\"}\n{\"name\":\"b\"}\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}
}

func TestAppendReportRejectsInvalidPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	if err := AppendReport(context.Background(), path, json.RawMessage(`{broken`)); err == nil {
		t.Fatal("expected error for invalid payload")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should not be created for invalid payload")
	}
	if err := AppendReport(context.Background(), "", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAppendReportConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := json.RawMessage(`{"name":"` + strings.Repeat("x", 512) + `"}`)
			if err := AppendReport(context.Background(), path, payload); err != nil {
				t.Errorf("AppendReport: %v", err)
			}
		}()
	}
	wg.Wait()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if !json.Valid(scanner.Bytes()) {
			t.Errorf("interleaved line: %q", scanner.Text())
		}
		lines++
	}
	if lines != 8 {
		t.Errorf("lines = %d, want 8", lines)
	}
}
