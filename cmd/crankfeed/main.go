package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankfeed/internal/artifact"
	"github.com/torosent/crankfeed/internal/config"
	"github.com/torosent/crankfeed/internal/engine"
	"github.com/torosent/crankfeed/internal/loadengine"
	"github.com/torosent/crankfeed/internal/logging"
	"github.com/torosent/crankfeed/internal/output"
	"github.com/torosent/crankfeed/internal/pipeline"
	"github.com/torosent/crankfeed/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing,
		attribute.String("crankfeed.mode", string(cfg.Mode)),
		attribute.Bool("crankfeed.report", cfg.Report),
	)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	out := &syncWriter{w: stdout}
	eng := loadengine.New(
		loadengine.WithLogger(logger.Named("engine")),
		loadengine.WithTracer(provider.Tracer("loadengine"), provider.ShouldPropagate()),
		loadengine.WithStdout(out),
	)

	c := &cli{
		cfg:    cfg,
		engine: eng,
		logger: logger,
		tracer: provider.Tracer("pipeline"),
		out:    out,
	}
	c.okMark, c.failMark = newMarks(!color.NoColor && isTerminal(stdout))
	return c.execute(ctx)
}

func newMarks(enabled bool) (ok, fail *color.Color) {
	ok = color.New(color.FgGreen, color.Bold)
	fail = color.New(color.FgRed, color.Bold)
	if !enabled {
		ok.DisableColor()
		fail.DisableColor()
	}
	return ok, fail
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// cli feeds discovered artifacts through the run and report pipelines.
type cli struct {
	cfg    *config.Config
	engine engine.Engine
	logger *zap.Logger
	tracer trace.Tracer
	out    io.Writer

	// Status markers; nil prints them plain.
	okMark   *color.Color
	failMark *color.Color

	mu       sync.Mutex
	failures int
}

func (c *cli) execute(ctx context.Context) error {
	paths, err := discover(c.cfg.Patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no artifacts match %s", strings.Join(c.cfg.Patterns, ", "))
	}
	c.logger.Info("artifacts discovered", zap.Int("count", len(paths)), zap.String("mode", string(c.cfg.Mode)))

	factory := pipeline.New(c.engine, pipeline.WithLogger(c.logger), pipeline.WithTracer(c.tracer))

	runs, err := c.runStream(factory)
	if err != nil {
		return err
	}
	var reports *pipeline.Stream
	if c.cfg.Report {
		reports, err = factory.Report(reportOptions(c.cfg.Options, c.cfg.ReportType))
		if err != nil {
			runs.End()
			return err
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		defer runs.End()
		for _, path := range paths {
			a, err := artifact.Load(path)
			if err != nil {
				c.fail("load", path, err)
				continue
			}
			if err := runs.Write(ctx, a); err != nil {
				c.fail("run", path, err)
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for err := range runs.Errors() {
			c.fail("run", "", err)
		}
		return nil
	})

	if reports != nil {
		g.Go(func() error {
			c.collectReports(ctx, reports)
			return nil
		})
	}

	for out := range runs.Results() {
		if out.Err != nil {
			c.fail("run", out.Artifact.Location, out.Err)
			continue
		}
		c.ok("run", out.Artifact.Location)
		if reports == nil {
			continue
		}
		if err := reports.Write(ctx, out.Artifact); err != nil {
			c.fail("report", out.Artifact.Location, err)
		}
	}
	if reports != nil {
		reports.End()
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		return fmt.Errorf("%d failure(s) across %d artifacts", c.failures, len(paths))
	}
	return nil
}

func (c *cli) runStream(factory *pipeline.Factory) (*pipeline.Stream, error) {
	if c.cfg.Mode == config.ModeSeries {
		return factory.RunSeries(c.cfg.Options)
	}
	return factory.Run(c.cfg.Options)
}

func (c *cli) collectReports(ctx context.Context, reports *pipeline.Stream) {
	for out := range reports.Results() {
		if len(out.Report) > 0 {
			if c.cfg.ReportFile != "" {
				if err := output.AppendReport(ctx, c.cfg.ReportFile, out.Report); err != nil {
					c.logger.Error("report file write failed", zap.String("path", c.cfg.ReportFile), zap.Error(err))
					c.fail("report", out.Artifact.Location, err)
					continue
				}
			} else {
				c.print("%s\n", out.Report)
			}
		}
		if out.Err != nil {
			c.fail("report", out.Artifact.Location, out.Err)
			continue
		}
		c.ok("report", out.Artifact.Location)
	}
}

func (c *cli) ok(stage, location string) {
	c.print("%s    %-6s %s\n", paint(c.okMark, "ok"), stage, location)
}

func (c *cli) fail(stage, location string, err error) {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
	mark := paint(c.failMark, "FAIL")
	if location == "" {
		c.print("%s  %-6s %v\n", mark, stage, err)
		return
	}
	c.print("%s  %-6s %s: %v\n", mark, stage, location, err)
}

func paint(mark *color.Color, s string) string {
	if mark == nil {
		return s
	}
	return mark.Sprint(s)
}

func (c *cli) print(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// syncWriter serialises writes from the CLI and the engine's text reports.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// reportOptions adds the report type to the engine options. Malformed
// options are passed through so the report pipeline rejects them.
func reportOptions(opts any, reportType string) any {
	if reportType == "" || reportType == engine.ReportTypeJSON {
		return opts
	}
	merged := map[string]any{}
	switch existing := opts.(type) {
	case nil:
	case map[string]any:
		for k, v := range existing {
			merged[k] = v
		}
	default:
		return opts
	}
	merged[engine.KeyType] = reportType
	return merged
}

// discover expands the artifact patterns into a sorted list of distinct
// files.
func discover(patterns []string) ([]string, error) {
	seen := map[string]struct{}{}
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			clean := filepath.Clean(m)
			if _, dup := seen[clean]; dup {
				continue
			}
			seen[clean] = struct{}{}
			paths = append(paths, clean)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
