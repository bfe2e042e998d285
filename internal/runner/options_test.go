package runner

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		validate func(*testing.T, Options)
	}{
		{
			name:  "defaults",
			input: Options{},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != 1 {
					t.Errorf("Concurrency = %d, want 1", o.Concurrency)
				}
				if o.LimiterFactory == nil {
					t.Error("LimiterFactory should not be nil")
				}
			},
		},
		{
			name: "negative values corrected",
			input: Options{
				Concurrency:   -5,
				TotalRequests: -10,
				RatePerSecond: -1,
				Duration:      -time.Second,
			},
			validate: func(t *testing.T, o Options) {
				if o.Concurrency != 1 {
					t.Errorf("Concurrency = %d, want 1", o.Concurrency)
				}
				if o.TotalRequests != 0 {
					t.Errorf("TotalRequests = %d, want 0", o.TotalRequests)
				}
				if o.RatePerSecond != 0 {
					t.Errorf("RatePerSecond = %d, want 0", o.RatePerSecond)
				}
				if o.Duration != 0 {
					t.Errorf("Duration = %s, want 0", o.Duration)
				}
			},
		},
		{
			name: "custom limiter kept",
			input: Options{
				LimiterFactory: func(int) *rate.Limiter { return rate.NewLimiter(1, 1) },
			},
			validate: func(t *testing.T, o Options) {
				if got := o.LimiterFactory(100).Limit(); got != 1 {
					t.Errorf("limit = %v, want custom 1", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.input
			o.normalize()
			tt.validate(t, o)
		})
	}
}

func TestDefaultLimiter(t *testing.T) {
	o := Options{}
	o.normalize()
	if got := o.LimiterFactory(0).Limit(); got != rate.Inf {
		t.Errorf("unlimited limiter = %v, want Inf", got)
	}
	l := o.LimiterFactory(50)
	if l.Limit() != 50 || l.Burst() != 50 {
		t.Errorf("limiter = %v/%d, want 50/50", l.Limit(), l.Burst())
	}
}
