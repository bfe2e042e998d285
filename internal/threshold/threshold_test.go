package threshold_test

import (
	"strings"
	"testing"

	"github.com/torosent/crankfeed/internal/metrics"
	"github.com/torosent/crankfeed/internal/threshold"
)

func reportStats() metrics.Stats {
	return metrics.Stats{
		Total:          200,
		Successes:      190,
		Failures:       10,
		RequestsPerSec: 40,
		MinLatencyMs:   2,
		MaxLatencyMs:   900,
		MeanLatencyMs:  120,
		P50LatencyMs:   100,
		P90LatencyMs:   300,
		P95LatencyMs:   450,
		P99LatencyMs:   800,
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		expr       string
		wantActual float64
		wantLimit  float64
		wantPass   bool
	}{
		{"http_req_duration:p99 < 500", 800, 500, false},
		{"http_req_duration:p95 < 500", 450, 500, true},
		{"http_req_duration:p90 <= 300", 300, 300, true},
		{"http_req_duration:p50 > 100", 100, 100, false},
		{"http_req_duration:avg < 150", 120, 150, true},
		{"http_req_duration:mean < 150", 120, 150, true},
		{"http_req_duration:min >= 2", 2, 2, true},
		{"http_req_duration:max < 1s", 900, 1000, true},
		{"http_req_duration:p99 <= 750ms", 800, 750, false},
		{"http_req_failed:rate < 0.01", 0.05, 0.01, false},
		{"http_req_failed:rate <= 0.05", 0.05, 0.05, true},
		{"http_req_failed:count == 10", 10, 10, true},
		{"http_req_failed:count != 10", 10, 10, false},
		{"http_requests:rate > 30", 40, 30, true},
		{"http_requests:count >= 201", 200, 201, false},
		{"  HTTP_REQ_DURATION:P99<1000  ", 800, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			results, err := threshold.Check([]string{tt.expr}, reportStats())
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("results = %d, want 1", len(results))
			}
			got := results[0]
			if got.Actual != tt.wantActual || got.Limit != tt.wantLimit || got.Pass != tt.wantPass {
				t.Errorf("result = %+v, want actual %g limit %g pass %v", got, tt.wantActual, tt.wantLimit, tt.wantPass)
			}
			if got.Expr != strings.TrimSpace(tt.expr) {
				t.Errorf("Expr = %q", got.Expr)
			}
			prefix := "PASS "
			if !tt.wantPass {
				prefix = "FAIL "
			}
			if !strings.HasPrefix(got.Message, prefix) {
				t.Errorf("Message = %q, want prefix %q", got.Message, prefix)
			}
		})
	}
}

func TestCheckFailureRateWithoutRequests(t *testing.T) {
	results, err := threshold.Check([]string{"http_req_failed:rate < 0.01"}, metrics.Stats{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !results[0].Pass || results[0].Actual != 0 {
		t.Errorf("result = %+v, want a passing zero rate", results[0])
	}
}

func TestCheckKeepsOrder(t *testing.T) {
	exprs := []string{"http_requests:count > 1", "http_req_failed:count < 1", "http_req_duration:p99 < 1000"}
	results, err := threshold.Check(exprs, reportStats())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	for i, r := range results {
		if r.Expr != exprs[i] {
			t.Errorf("results[%d] = %q, want %q", i, r.Expr, exprs[i])
		}
	}
	if got := threshold.Failed(results); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
}

func TestCheckEmpty(t *testing.T) {
	results, err := threshold.Check(nil, reportStats())
	if err != nil || results != nil {
		t.Fatalf("Check(nil) = %v, %v", results, err)
	}
	if threshold.Failed(nil) != 0 {
		t.Error("Failed(nil) should be zero")
	}
}

func TestCheckRejectsMalformed(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "empty threshold"},
		{"http_req_duration:p99 500", "missing comparison operator"},
		{"http_req_duration:p99 => 500", "unsupported operator"},
		{"http_req_duration < 500", "want metric:aggregate"},
		{"cpu:p99 < 500", "unsupported metric"},
		{"http_req_failed:p99 < 1", "unsupported aggregate"},
		{"http_requests:avg > 1", "unsupported aggregate"},
		{"http_req_duration:p99 < fast", "invalid limit"},
		{"http_req_failed:rate < 1s", "invalid limit"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := threshold.Check([]string{tt.expr}, reportStats())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCheckReportsEveryBadExpression(t *testing.T) {
	_, err := threshold.Check([]string{"bogus", "http_req_duration:p99 < 500", "cpu:p50 < 1"}, reportStats())
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "threshold[0]") || !strings.Contains(msg, "threshold[2]") {
		t.Errorf("error %q should list both bad thresholds", msg)
	}
	if strings.Contains(msg, "threshold[1]") {
		t.Errorf("error %q lists a valid threshold", msg)
	}
}

func TestValidate(t *testing.T) {
	if err := threshold.Validate([]string{"http_req_duration:p95 < 2s"}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := threshold.Validate([]string{"http_req_duration:p95"}); err == nil {
		t.Error("Validate() should reject an incomplete threshold")
	}
}
