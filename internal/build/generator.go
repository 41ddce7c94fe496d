// Package build runs the generation pipeline: scan the project, render every
// template and write the outputs whose content changed since the last run.
package build

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
	"github.com/conneroisu/appgen/internal/naming"
	"github.com/conneroisu/appgen/internal/plugins"
	"github.com/conneroisu/appgen/internal/scanner"
	"github.com/conneroisu/appgen/internal/templates"
	"github.com/conneroisu/appgen/internal/version"
)

// Header is prepended to every generated file.
const Header = "// Generated by appgen. Do not edit.\n\n"

// Result lists what a generation run did, by output filename.
type Result struct {
	Written   []string
	Unchanged []string
	Removed   []string
	Failed    []string
	Duration  time.Duration
}

// Changed reports whether the run touched the build directory.
func (r *Result) Changed() bool {
	return len(r.Written) > 0 || len(r.Removed) > 0
}

// Generator renders templates into the build directory.
type Generator struct {
	cfg       *config.Config
	logger    logging.Logger
	templates []templates.Template
	metrics   *Metrics

	// mu serialises runs; the watcher can fire while a run is in flight.
	mu sync.Mutex
}

// NewGenerator creates a generator for cfg using the default template set.
func NewGenerator(cfg *config.Config, logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Generator{
		cfg:       cfg,
		logger:    logger.WithComponent("build"),
		templates: templates.Default(),
		metrics:   NewMetrics(),
	}
}

// WithTemplates replaces the template set.
func (g *Generator) WithTemplates(ts []templates.Template) *Generator {
	g.templates = ts
	return g
}

// SetConfig swaps the configuration used by subsequent runs.
func (g *Generator) SetConfig(cfg *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// Metrics returns the run counters.
func (g *Generator) Metrics() *Metrics {
	return g.metrics
}

// Generate scans the project and writes every generated file.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	app, err := scanner.New(g.cfg, g.logger).Scan(ctx)
	if err != nil {
		g.metrics.RecordRun(nil, time.Since(start), err)
		return nil, err
	}

	result, err := g.generate(ctx, app, start)
	g.metrics.RecordRun(result, time.Since(start), err)
	return result, err
}

// GenerateApp writes the generated files for an already scanned app.
func (g *Generator) GenerateApp(ctx context.Context, app *scanner.App) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	result, err := g.generate(ctx, app, start)
	g.metrics.RecordRun(result, time.Since(start), err)
	return result, err
}

func (g *Generator) generate(ctx context.Context, app *scanner.App, start time.Time) (*Result, error) {
	perf := logging.StartOperation(g.logger, "generate")
	result := &Result{}

	rendered, err := g.render(ctx, app, result)
	if err != nil {
		result.Duration = time.Since(start)
		perf.EndWithError(ctx, err)
		return result, err
	}

	buildDir := g.cfg.BuildPath("")
	previous, err := LoadManifest(buildDir)
	if err != nil {
		g.logger.Warn(ctx, err, "Discarding unreadable manifest")
		previous = NewManifest("")
	}
	next := NewManifest(version.GetVersion())

	for _, t := range g.templates {
		content := Header + rendered[t.Filename]
		hash := naming.ShortHash(content)
		next.Files[t.Filename] = hash

		path := g.cfg.BuildPath(t.Filename)
		if previous.Files[t.Filename] == hash && exists(path) {
			result.Unchanged = append(result.Unchanged, t.Filename)
			continue
		}
		if err := writeFile(path, []byte(content)); err != nil {
			result.Failed = append(result.Failed, t.Filename)
			result.Duration = time.Since(start)
			perf.EndWithError(ctx, err)
			return result, err
		}
		result.Written = append(result.Written, t.Filename)
		g.logger.Debug(ctx, "Wrote generated file", "file", t.Filename, "hash", hash)
	}

	for _, name := range previous.Filenames() {
		if _, ok := next.Files[name]; ok {
			continue
		}
		err := os.Remove(g.cfg.BuildPath(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			g.logger.Warn(ctx, err, "Failed to remove stale generated file", "file", name)
			continue
		}
		result.Removed = append(result.Removed, name)
	}

	if err := next.Save(buildDir); err != nil {
		result.Duration = time.Since(start)
		perf.EndWithError(ctx, err)
		return result, err
	}

	result.Duration = time.Since(start)
	perf.End(ctx)
	g.logger.Info(ctx, "Generation complete",
		"written", len(result.Written),
		"unchanged", len(result.Unchanged),
		"removed", len(result.Removed),
		"plugins", len(app.Plugins),
		"layouts", len(app.Layouts),
		"middleware", len(app.Middleware),
	)
	return result, nil
}

// render produces every template's output in memory. Nothing is written
// unless all templates succeed.
func (g *Generator) render(ctx context.Context, app *scanner.App, result *Result) (map[string]string, error) {
	tctx := templates.NewContext(g.cfg, app, g.logger)
	rendered := make(map[string]string, len(g.templates))

	var firstErr error
	for _, t := range g.templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := t.Render(ctx, tctx)
		if err != nil {
			var cycle *plugins.CycleError
			if errors.As(err, &cycle) {
				err = cycle.ToAppError()
			}
			result.Failed = append(result.Failed, t.Filename)
			if firstErr == nil {
				firstErr = apperrors.WrapBuild(err, apperrors.ErrCodeTemplateRender,
					"failed to render "+t.Filename, t.Filename)
			}
			continue
		}
		rendered[t.Filename] = out
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return rendered, nil
}

func exists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}
