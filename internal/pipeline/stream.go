package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/crankfeed/internal/artifact"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/options"
	"github.com/torosent/crankfeed/internal/tracing"
)

// ErrEnded is returned by Write after End was called.
var ErrEnded = errors.New("pipeline: write after end")

// resultBuffer is how many outcomes a stream holds before the producer is
// blocked on an unread Results channel.
const resultBuffer = 16

// Discipline selects how a stream schedules engine calls.
type Discipline string

const (
	Parallel Discipline = "parallel"
	Serial   Discipline = "serial"
	Reporter Discipline = "report"
)

// Outcome is the result for one written artifact. Err is nil on success;
// Report holds the JSON report of a report stream, if any.
type Outcome struct {
	Artifact *artifact.Artifact
	Err      error
	Report   json.RawMessage
}

type item struct {
	ctx      context.Context
	artifact *artifact.Artifact
}

// Stream is a single-pass transform from artifacts to outcomes.
type Stream struct {
	discipline Discipline
	engine     engine.Engine
	opts       options.Options
	logger     *zap.Logger
	tracer     trace.Tracer

	mu     sync.RWMutex
	ended  bool
	intake chan item

	results  chan Outcome
	errs     chan error
	inflight sync.WaitGroup
	done     chan struct{}

	errMu sync.Mutex
	seen  []error
}

func newStream(d Discipline, eng engine.Engine, opts options.Options, logger *zap.Logger, tracer trace.Tracer) *Stream {
	s := &Stream{
		discipline: d,
		engine:     eng,
		opts:       opts,
		logger:     logger.With(zap.String("pipeline", string(d))),
		tracer:     tracer,
		intake:     make(chan item),
		results:    make(chan Outcome, resultBuffer),
		errs:       make(chan error, resultBuffer),
		done:       make(chan struct{}),
	}
	go s.loop()
	return s
}

// Discipline reports how the stream schedules engine calls.
func (s *Stream) Discipline() Discipline {
	return s.discipline
}

// Write hands a to the stream. For serial and report streams it blocks until
// the previous artifact has finished processing. ctx bounds only the wait;
// it is also the parent of the invocation span.
func (s *Stream) Write(ctx context.Context, a *artifact.Artifact) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return ErrEnded
	}
	select {
	case s.intake <- item{ctx: ctx, artifact: a}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End signals that no more artifacts will be written. It waits for pending
// writes to be accepted. Calling End more than once is safe.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	close(s.intake)
}

// Results delivers one Outcome per written artifact. It is closed after End
// once every artifact was processed.
func (s *Stream) Results() <-chan Outcome {
	return s.results
}

// Errors delivers run failures of a parallel stream, in completion order. It
// is closed after the last in-flight run finished. Serial and report streams
// report failures through Results and close Errors without sending.
func (s *Stream) Errors() <-chan error {
	return s.errs
}

// Done is closed once both Results and Errors are closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream finished and returns every failure seen,
// joined. Results (and Errors, for parallel streams) must be drained
// concurrently.
func (s *Stream) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return errors.Join(s.seen...)
}

func (s *Stream) record(err error) {
	s.errMu.Lock()
	s.seen = append(s.seen, err)
	s.errMu.Unlock()
}

func (s *Stream) emit(out Outcome) {
	if out.Err != nil {
		s.record(out.Err)
	}
	s.results <- out
}

func (s *Stream) loop() {
	defer close(s.done)
	for it := range s.intake {
		a := it.artifact
		if a.IsNull() {
			s.logger.Debug("artifact has no content, forwarding", zap.String("artifact", location(a)))
			s.emit(Outcome{Artifact: a})
			continue
		}
		switch s.discipline {
		case Parallel:
			s.startRun(it.ctx, a)
			s.emit(Outcome{Artifact: a})
		case Serial:
			err := <-s.awaitRun(it.ctx, a)
			s.emit(Outcome{Artifact: a, Err: err})
		case Reporter:
			s.emit(s.report(it.ctx, a))
		}
	}
	close(s.results)
	s.inflight.Wait()
	close(s.errs)
}

// startRun issues the run and reports its failure out-of-band.
func (s *Stream) startRun(ctx context.Context, a *artifact.Artifact) {
	done := s.awaitRun(ctx, a)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := <-done; err != nil {
			s.record(err)
			s.errs <- err
		}
	}()
}

// awaitRun starts the run with its span and returns its completion.
func (s *Stream) awaitRun(ctx context.Context, a *artifact.Artifact) <-chan error {
	ctx, span := tracing.StartInvocationSpan(ctx, s.tracer, "run", a.Location, a.Name)
	s.logger.Debug("run started", zap.String("artifact", a.Location), zap.String("test", a.Name))
	done, started := invokeRun(ctx, s.engine, a, s.opts)
	// The next artifact is not taken from intake before this run entered
	// the engine, so runs start in arrival order.
	<-started

	out := make(chan error, 1)
	go func() {
		defer close(out)
		err := <-done
		tracing.EndSpan(span, err)
		if err != nil {
			s.logger.Warn("run failed", zap.String("artifact", a.Location), zap.Error(err))
		} else {
			s.logger.Debug("run finished", zap.String("artifact", a.Location))
		}
		out <- err
	}()
	return out
}

func (s *Stream) report(ctx context.Context, a *artifact.Artifact) Outcome {
	ctx, span := tracing.StartInvocationSpan(ctx, s.tracer, "report", a.Location, a.Name)
	s.logger.Debug("report started", zap.String("artifact", a.Location), zap.String("test", a.Name))
	res := <-ReportOnArtifact(ctx, s.engine, a, s.opts)

	err := CheckReport(res.Report, res.Err)
	tracing.EndSpan(span, err)
	if err != nil {
		s.logger.Warn("report failed", zap.String("artifact", a.Location), zap.Error(err))
	} else {
		s.logger.Debug("report passed", zap.String("artifact", a.Location))
	}
	return Outcome{Artifact: a, Err: err, Report: res.Report}
}

func location(a *artifact.Artifact) string {
	if a == nil {
		return ""
	}
	return a.Location
}
