package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Result captures execution summary.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
}

// Runner coordinates concurrent execution with rate limiting.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

// Run executes requests until the total or duration cap is reached, or ctx
// is done. A runner without either cap runs until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var allocated int64
	var total int64
	var errs int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	permits := make(chan struct{}, r.opt.Concurrency)

	// Scheduler: serializes rate limiting to avoid burst overshoot across workers.
	go func() {
		defer close(permits)
		for {
			if ctx.Err() != nil {
				return
			}
			current := atomic.LoadInt64(&allocated)
			if r.opt.TotalRequests > 0 && current >= int64(r.opt.TotalRequests) {
				return
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return
				}
			}
			// Allocate before releasing the permit so workers only execute allocated slots.
			atomic.AddInt64(&allocated, 1)
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for range permits {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&total, 1)
				r.execute(ctx, &errs)
			}
		}()
	}
	wg.Wait()

	return Result{
		Total:    atomic.LoadInt64(&total),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
	}
}

func (r *Runner) execute(ctx context.Context, errs *int64) {
	if r.opt.Requester == nil {
		return
	}
	begin := time.Now()
	err := r.opt.Requester.Do(ctx)
	if err != nil {
		atomic.AddInt64(errs, 1)
	}
	if r.opt.Observe != nil {
		r.opt.Observe(time.Since(begin), err)
	}
}
