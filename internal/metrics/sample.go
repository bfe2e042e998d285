package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/torosent/crankfeed/internal/runner"
)

// Sample is the record of one request. It is the line format a run streams
// to its output.
type Sample struct {
	Run       string `json:"run"`
	Seq       int64  `json:"seq"`
	LatencyUs int64  `json:"latency_us"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewSample builds the record for one request outcome.
func NewSample(run string, seq int64, latency time.Duration, err error) Sample {
	s := Sample{Run: run, Seq: seq, LatencyUs: latency.Microseconds()}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		s.Status = httpErr.StatusCode
	}
	if err != nil {
		s.Error = ErrorLabel(err)
	}
	return s
}

// Latency returns the recorded latency.
func (s Sample) Latency() time.Duration {
	return time.Duration(s.LatencyUs) * time.Microsecond
}

// Failed reports whether the request failed.
func (s Sample) Failed() bool {
	return s.Error != ""
}

// ErrorLabel names the class of err for failure breakdowns. HTTP failures
// are labelled by status code; other errors by a friendly type name.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}
