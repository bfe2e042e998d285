// Package metrics turns per-request samples into aggregated load test
// statistics.
//
// A run writes one [Sample] per request as a JSON line; a report reads the
// lines back and feeds them to a [Collector]:
//
//	collector := metrics.NewCollector()
//	for each line {
//		var s metrics.Sample
//		_ = json.Unmarshal(line, &s)
//		collector.Record(s)
//	}
//	stats := collector.Stats(elapsed)
//
// # Statistics
//
// The [Stats] type provides:
//   - Request counts (total, successes, failures)
//   - Latency percentiles (P50, P90, P95, P99) from an HDR histogram
//   - Requests per second (RPS)
//   - Failure counts by error label and response counts by status code
//
// # Thread Safety
//
// It's safe to call Record from multiple goroutines.
package metrics
