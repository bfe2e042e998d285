// Package runner provides the load generation loop used by the built-in
// engine.
//
// The runner orchestrates concurrent request execution with support for:
//   - Configurable concurrency levels
//   - Rate limiting (requests per second)
//   - Duration-based and count-based test termination
//
// # Basic Usage
//
// Create a runner with options and a requester implementation:
//
//	opts := runner.Options{
//		Concurrency:   10,
//		TotalRequests: 1000,
//		RatePerSecond: 100,
//		Requester:     myRequester,
//		Observe: func(latency time.Duration, err error) {
//			collector.Record(latency, err)
//		},
//	}
//	result := runner.New(opts).Run(ctx)
//
// # Middleware
//
// Enhance requesters with middleware:
//   - [WithLogging]: Log request failures through zap
//   - [WithRetry]: Automatic retry with backoff
//
// # Error Handling
//
// The [HTTPError] type provides structured error information for HTTP requests:
//
//	var httpErr *runner.HTTPError
//	if errors.As(err, &httpErr) {
//		fmt.Printf("Status: %d, Body: %s\n", httpErr.StatusCode, httpErr.Body)
//	}
package runner
