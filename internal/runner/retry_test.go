package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/torosent/crankfeed/internal/runner"
)

// TestRetryRespectsMaxAttempts verifies retry count is honored.
func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	failUntil := int64(3)

	requester := &retryableRequester{
		attempts:  &attempts,
		failUntil: failUntil,
	}

	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc: func(attempt int, err error) time.Duration {
			return time.Duration(attempt) * time.Millisecond // linear backoff for test determinism
		},
	}

	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 1,
		Requester:     runner.WithRetry(requester, policy),
	})

	res := r.Run(context.Background())

	if res.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Total)
	}
	if res.Errors != 0 {
		t.Errorf("expected errors 0, got %d", res.Errors)
	}
	// Should succeed on 4th attempt (3 retries after initial failure).
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64

	requester := &retryableRequester{
		attempts:  &attempts,
		failUntil: 100, // always fails
	}

	policy := runner.RetryPolicy{
		MaxAttempts: 3,
		DelayFunc:   func(attempt int, err error) time.Duration { return time.Millisecond },
	}

	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 1,
		Requester:     runner.WithRetry(requester, policy),
	})

	res := r.Run(context.Background())

	if res.Errors != 1 {
		t.Errorf("expected errors 1, got %d", res.Errors)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (max), got %d", attempts)
	}
}

func TestNon2xxLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	requester := &statusRequester{
		statusCode: 500,
	}

	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 2,
		Requester:     runner.WithLogging(requester, zap.New(core)),
	})

	res := r.Run(context.Background())

	if res.Total != 2 {
		t.Errorf("expected total 2, got %d", res.Total)
	}
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 logged failures, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(500) {
		t.Errorf("status field = %v, want 500", got)
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	req := &retryableRequester{attempts: &attempts, failUntil: 100}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(err error) bool { return false }, // never retry
	}
	if err := runner.WithRetry(req, policy).Do(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestRetrySkipsClientErrors(t *testing.T) {
	var attempts int64
	req := runner.RequesterFunc(func(context.Context) error {
		atomic.AddInt64(&attempts, 1)
		return &runner.HTTPError{StatusCode: 404, Body: "missing"}
	})
	err := runner.WithRetry(req, runner.RetryPolicy{MaxAttempts: 3}).Do(context.Background())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt for a 4xx, got %d", attempts)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", errors.New("connection refused"), true},
		{"server error", &runner.HTTPError{StatusCode: 503}, true},
		{"too many requests", &runner.HTTPError{StatusCode: 429}, true},
		{"bad request", &runner.HTTPError{StatusCode: 400}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		if got := runner.Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type retryableRequester struct {
	attempts  *int64
	failUntil int64
}

func (r *retryableRequester) Do(ctx context.Context) error {
	attempt := atomic.AddInt64(r.attempts, 1)
	if attempt <= r.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

type statusRequester struct {
	statusCode int
}

func (s *statusRequester) Do(ctx context.Context) error {
	if s.statusCode >= 400 {
		return &runner.HTTPError{StatusCode: s.statusCode, Body: "error body"}
	}
	return nil
}
