// # internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflscan/internal/config"
	"reflscan/internal/core/errors"
	"reflscan/internal/data/cache"
	"reflscan/internal/decl"
	"reflscan/internal/engine/diagnostic"
	"reflscan/internal/engine/typeres"
	"reflscan/internal/engine/walker"
	"reflscan/internal/output"
	"reflscan/internal/shared/observability"
	"reflscan/internal/shared/util"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StdoutPath selects standard output as the descriptor destination.
const StdoutPath = "-"

type Result struct {
	RunID       string
	PrimaryFile string
	Output      string
	Records     int
	Counts      map[string]int
	Diagnostics []diagnostic.Diagnostic
	Cached      bool
	Duration    time.Duration
}

type App struct {
	Config  *config.Config
	Version string

	stdout      io.Writer
	diagnostics io.Writer
	cache       *cache.Store
}

// New wires an App. stdout receives descriptor output for "-" targets and
// diagnostics receives the diagnostics channel; they must differ.
func New(cfg *config.Config, stdout, diagnostics io.Writer) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		Config:      cfg,
		Version:     "dev",
		stdout:      stdout,
		diagnostics: diagnostics,
	}
	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			// The cache only saves work; generation proceeds without it.
			slog.Warn("descriptor cache disabled", "path", cfg.Cache.Path, "error", err)
		} else {
			a.cache = store
		}
	}
	return a, nil
}

func (a *App) Close() error {
	return a.cache.Close()
}

// Generate runs one extraction of input and writes the rendered result to
// outputPath. Per-declaration problems become diagnostics; only unreadable
// or malformed input and write failures are returned as errors.
func (a *App) Generate(ctx context.Context, input, outputPath string) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Generate")
	defer span.End()

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := slog.With("run_id", res.RunID, "input", input)
	span.SetAttributes(
		attribute.String("reflscan.run_id", res.RunID),
		attribute.String("reflscan.input", input),
	)

	reporter := diagnostic.NewReporter(a.diagnostics)
	err := a.generate(ctx, logger, reporter, input, outputPath, res)
	if err == nil {
		err = a.writeSARIF(input, res.Diagnostics)
	}
	res.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Cached:
		outcome = "cached"
	}
	observability.RunDuration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("reflscan.records", res.Records),
		attribute.Int("reflscan.diagnostics", len(res.Diagnostics)),
		attribute.Bool("reflscan.cached", res.Cached),
	)
	a.logSummary(logger, reporter, res)
	return res, nil
}

func (a *App) generate(ctx context.Context, logger *slog.Logger, reporter *diagnostic.Reporter, input, outputPath string, res *Result) error {
	if strings.TrimSpace(outputPath) == "" {
		return errors.New(errors.CodeValidationError, "no output given")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read declaration dump"), errors.CtxPath, input)
	}

	key := cache.Key(data, a.Config.Fingerprint())

	if a.cache != nil {
		entry, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache lookup failed", "error", err)
		} else if ok {
			logger.Debug("replaying cached descriptor", "key", key, "hits", entry.HitCount)
			reporter.Replay(entry.Diagnostics)
			res.PrimaryFile = entry.PrimaryFile
			res.Output = entry.Output
			res.Records = entry.Records
			res.Counts = entry.Counts
			res.Diagnostics = reporter.Diagnostics()
			res.Cached = true
			return a.writeOutput(outputPath, entry.Output)
		}
	}

	stageStart := time.Now()
	unit, err := decl.Decode(data)
	observability.AnalysisDuration.WithLabelValues("decode").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return errors.AddContext(err, errors.CtxOperation, "decode "+input)
	}
	res.PrimaryFile = unit.PrimaryFile

	text, stream, err := a.Render(ctx, unit, reporter)
	if err != nil {
		return err
	}
	res.Output = text
	res.Records = stream.Len()
	res.Counts = make(map[string]int)
	for directive, n := range stream.CountByDirective() {
		res.Counts[string(directive)] = n
	}
	res.Diagnostics = reporter.Diagnostics()

	if err := a.writeOutput(outputPath, text); err != nil {
		return err
	}

	if a.cache != nil {
		if err := a.cache.Put(ctx, cache.Entry{
			Key:         key,
			PrimaryFile: unit.PrimaryFile,
			Format:      a.Config.Format,
			Output:      text,
			Records:     res.Records,
			Counts:      res.Counts,
			Diagnostics: res.Diagnostics,
		}); err != nil {
			logger.Warn("cache store failed", "error", err)
		}
	}
	return nil
}

// Render walks the unit and renders the finalized stream in the configured
// format. The stream is returned for inspection.
func (a *App) Render(ctx context.Context, unit *decl.Unit, reporter *diagnostic.Reporter) (string, *output.Stream, error) {
	_, span := observability.Tracer.Start(ctx, "app.Render")
	defer span.End()

	stream := output.NewStream(a.Config.IncludeHeader, unit.PrimaryFile)
	resolver := typeres.NewResolver(typeres.Policy{BoolAsWord: a.Config.BoolAsWord()})
	w, err := walker.New(resolver, stream, reporter, walker.Options{Exclude: a.Config.Exclude.Symbols})
	if err != nil {
		return "", nil, errors.Wrap(err, errors.CodeValidationError, "configure walker")
	}

	stageStart := time.Now()
	w.WalkUnit(unit)
	observability.AnalysisDuration.WithLabelValues("walk").Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("render").Observe(time.Since(stageStart).Seconds())
	}()

	text, err := stream.Finalize()
	if err != nil {
		return "", nil, err
	}

	switch a.Config.Format {
	case config.FormatDescriptor:
	case config.FormatTSV:
		text, err = output.NewTSVGenerator(stream).Generate()
	case config.FormatDOT:
		text, err = output.NewDOTGenerator(stream).Generate()
	case config.FormatMermaid:
		text, err = output.NewMermaidGenerator(stream).Generate()
	default:
		err = errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported format %q", a.Config.Format))
	}
	if err != nil {
		return "", nil, err
	}
	return text, stream, nil
}

func (a *App) writeOutput(path, text string) error {
	if path == StdoutPath {
		if a.stdout == nil {
			return errors.New(errors.CodeValidationError, "no stdout writer configured")
		}
		_, err := io.WriteString(a.stdout, text)
		return err
	}
	if err := util.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write descriptor output"), errors.CtxPath, path)
	}
	return nil
}

// writeSARIF mirrors the diagnostics channel into a SARIF log when one is
// configured. Paths are reported relative to the dump's directory.
func (a *App) writeSARIF(input string, diags []diagnostic.Diagnostic) error {
	path := strings.TrimSpace(a.Config.SARIF)
	if path == "" {
		return nil
	}
	root, err := filepath.Abs(filepath.Dir(input))
	if err != nil {
		root = ""
	}
	data, err := diagnostic.GenerateSARIF(root, a.Version, diags)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "render sarif report")
	}
	if err := util.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write sarif report"), errors.CtxPath, path)
	}
	return nil
}

func (a *App) logSummary(logger *slog.Logger, reporter *diagnostic.Reporter, res *Result) {
	attrs := []any{
		"primary_file", res.PrimaryFile,
		"records", res.Records,
		"warnings", reporter.WarningCount(),
		"errors", reporter.ErrorCount(),
		"diagnostics", reporter.Summary(),
		"cached", res.Cached,
		"duration", res.Duration.Round(time.Millisecond),
		"heap_mb", util.HeapAllocMB(),
	}
	for _, directive := range util.SortedStringKeys(res.Counts) {
		attrs = append(attrs, strings.ToLower(directive), res.Counts[directive])
	}
	logger.Info("generation complete", attrs...)
}
