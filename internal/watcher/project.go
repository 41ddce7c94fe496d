package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/appgen/internal/build"
	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
)

// Generator is the part of build.Generator driven by the project watcher.
type Generator interface {
	Generate(ctx context.Context) (*build.Result, error)
	SetConfig(cfg *config.Config)
}

// ConfigLoader re-reads the project configuration.
type ConfigLoader func() (*config.Config, error)

// ProjectWatcher regenerates a project whenever a plugin, layout, middleware
// or the configuration file changes.
type ProjectWatcher struct {
	cfg        *config.Config
	configFile string
	generator  Generator
	loader     ConfigLoader
	logger     logging.Logger
	fw         *FileWatcher
}

// NewProjectWatcher watches the source directories named by cfg. loader may
// be nil, in which case configuration changes only trigger a regeneration.
func NewProjectWatcher(cfg *config.Config, generator Generator, loader ConfigLoader, logger logging.Logger) (*ProjectWatcher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fw, err := NewFileWatcher(cfg.RootDir, cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, err
	}

	pw := &ProjectWatcher{
		cfg:        cfg,
		configFile: cfg.ConfigFile,
		generator:  generator,
		loader:     loader,
		logger:     logger.WithComponent("watcher"),
		fw:         fw,
	}

	dirs := pw.sourceDirs()
	missing := false
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			missing = true
		}
		if err := fw.AddRecursive(dir); err != nil {
			_ = fw.Stop()
			return nil, err
		}
	}
	if missing {
		// a source dir created later shows up as an event in the root
		if err := fw.AddPath(cfg.RootDir); err != nil {
			_ = fw.Stop()
			return nil, err
		}
	}
	if cfg.ConfigFile != "" {
		if err := fw.AddPath(filepath.Dir(cfg.ConfigFile)); err != nil {
			pw.logger.Warn(context.Background(), err, "Not watching configuration file", "file", cfg.ConfigFile)
		}
	}

	exts := append([]string{".vue", ".yaml", ".yml"}, cfg.Extensions...)
	sources := ExtensionFilter(exts...)
	fw.AddFilter(NoEditorFilter)
	fw.AddFilter(IgnoreFilter(cfg.SrcPath(""), cfg.Ignore))
	fw.AddFilter(AnyFilter(pw.isConfigFile, func(path string) bool {
		return sources(path) && within(path, dirs)
	}))
	fw.AddHandler(pw.handle)

	return pw, nil
}

// Run generates once, then regenerates on every change batch until ctx is
// cancelled.
func (pw *ProjectWatcher) Run(ctx context.Context) error {
	pw.regenerate(ctx)

	if err := pw.fw.Start(ctx); err != nil {
		return err
	}
	pw.logger.Info(ctx, "Watching for changes", "paths", len(pw.fw.WatchedPaths()))

	<-ctx.Done()
	return pw.fw.Stop()
}

func (pw *ProjectWatcher) handle(ctx context.Context, events []ChangeEvent) error {
	reload := false
	for _, e := range events {
		pw.logger.Debug(ctx, "File changed", "path", e.Path, "type", e.Type.String())
		if pw.isConfigFile(e.Path) {
			reload = true
		}
	}

	if reload && pw.loader != nil {
		cfg, err := pw.loader()
		if err != nil {
			return err
		}
		cfg.ConfigFile = pw.configFile
		pw.generator.SetConfig(cfg)
		pw.logger.Info(ctx, "Configuration reloaded", "file", pw.configFile)
	}

	pw.regenerate(ctx)
	return nil
}

func (pw *ProjectWatcher) regenerate(ctx context.Context) {
	result, err := pw.generator.Generate(ctx)
	if err != nil {
		if apperrors.IsRecoverable(err) {
			pw.logger.Warn(ctx, err, "Generation failed, waiting for the next change")
		} else {
			pw.logger.Error(ctx, err, "Generation failed")
		}
		return
	}
	if result.Changed() {
		pw.logger.Info(ctx, "Regenerated", "written", result.Written, "removed", result.Removed)
	}
}

func (pw *ProjectWatcher) sourceDirs() []string {
	return []string{
		pw.cfg.SrcPath(pw.cfg.Dirs.Plugins),
		pw.cfg.SrcPath(pw.cfg.Dirs.Layouts),
		pw.cfg.SrcPath(pw.cfg.Dirs.Middleware),
	}
}

func (pw *ProjectWatcher) isConfigFile(path string) bool {
	if pw.configFile == "" {
		return false
	}
	a, errA := filepath.Abs(path)
	b, errB := filepath.Abs(pw.configFile)
	return errA == nil && errB == nil && a == b
}

func within(path string, dirs []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range dirs {
		d, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
