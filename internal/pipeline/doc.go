// Package pipeline turns a sequence of artifacts into engine invocations.
//
// A [Factory] hands out three stream disciplines:
//
//   - Run: every artifact starts a run immediately and is forwarded without
//     waiting for it; run failures arrive later on [Stream.Errors].
//   - RunSeries: one run at a time. The next artifact is accepted only after
//     the current run finished, and a failure becomes that artifact's
//     [Outcome].
//   - Report: one report at a time, with the same backpressure as RunSeries.
//     A report whose breakdown defines a failures field is a failure.
//
// Options are validated once, when the stream is created:
//
//	f := pipeline.New(eng, pipeline.WithLogger(logger))
//	s, err := f.RunSeries(map[string]any{"duration": "1m"})
//	if err != nil {
//		return err // *pluginerr.Error, "options must be an object"
//	}
//	go func() {
//		for _, a := range artifacts {
//			_ = s.Write(ctx, a)
//		}
//		s.End()
//	}()
//	for out := range s.Results() {
//		...
//	}
//
// Results must be drained for a stream to finish. For Run streams, Errors
// must be drained as well. A failure never stops later artifacts from being
// processed, and in-flight engine calls are never cancelled.
package pipeline
