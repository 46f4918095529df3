package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflscan/internal/config"
	"reflscan/internal/core/errors"
	"reflscan/internal/shared/observability"
	"reflscan/internal/shared/util"
	"reflscan/internal/watcher"
	"strings"
	"time"
)

const limiterTTL = 10 * time.Minute

var formatExtensions = map[string]string{
	config.FormatDescriptor: ".refl",
	config.FormatTSV:        ".tsv",
	config.FormatDOT:        ".dot",
	config.FormatMermaid:    ".mmd",
}

// Watch generates once and then regenerates every time the content of input
// changes, until ctx is cancelled. input is either one dump, written to
// outputPath, or a directory whose dumps (filtered by the watch include and
// exclude patterns) are each written below the outputPath directory.
// Regenerations are debounced by the watcher and rate limited per dump.
func (a *App) Watch(ctx context.Context, input, outputPath string) error {
	info, err := os.Stat(input)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat watch input"), errors.CtxPath, input)
	}
	root := filepath.Clean(input)
	dirMode := info.IsDir()
	if dirMode && (outputPath == StdoutPath || strings.TrimSpace(outputPath) == "") {
		return errors.New(errors.CodeValidationError, "watching a directory needs an output directory")
	}
	target := func(path string) string {
		if !dirMode {
			return outputPath
		}
		return a.outputFor(root, path, outputPath)
	}

	if addr := a.Config.Observability.MetricsAddr; addr != "" {
		server := observability.NewServer(addr)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	limiters := util.NewLimiterRegistry(a.Config.Watch.MinInterval, a.Config.Watch.Burst, limiterTTL)
	go limiters.Run(ctx)

	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Watch.Include, a.Config.Watch.Exclude, func(paths []string) {
		for _, path := range paths {
			if !dirMode && path != root {
				continue
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				slog.Info("declaration dump removed", "input", path)
				continue
			}
			a.regenerate(ctx, limiters.Get(path), path, target(path))
		}
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "configure watcher")
	}
	defer w.Close()

	if err := w.Watch([]string{input}); err != nil {
		return err
	}

	tracked := w.Tracked()
	for _, path := range tracked {
		if _, err := a.Generate(ctx, path, target(path)); err != nil {
			// Keep watching: the next save may fix the dump.
			slog.Error("initial generation failed", "input", path, "error", err)
		}
	}
	slog.Info("watching declaration dumps", "input", input, "dumps", len(tracked), "output", outputPath, "debounce", a.Config.Watch.Debounce)

	<-ctx.Done()
	return nil
}

// outputFor maps a dump below root to its output file below outDir, keeping
// the relative directory and replacing the extension with the format's.
func (a *App) outputFor(root, input, outDir string) string {
	rel, err := filepath.Rel(root, input)
	if err != nil {
		rel = filepath.Base(input)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outDir, rel+formatExtensions[a.Config.Format])
}

func (a *App) regenerate(ctx context.Context, limiter *util.Limiter, input, outputPath string) {
	if !limiter.Allow() {
		observability.RegenerationsThrottledTotal.Inc()
		slog.Debug("regeneration throttled", "input", input)
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}
	if _, err := a.Generate(ctx, input, outputPath); err != nil {
		slog.Error("regeneration failed", "input", input, "error", err)
	}
}
