// Package scanner discovers the project files that drive code generation:
// plugins, layouts and middleware.
//
// Discovery is deterministic: every directory is globbed with doublestar,
// ignore patterns are applied relative to the source directory and results
// are sorted by path before they are turned into descriptors. Missing
// directories yield empty results.
package scanner

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
	"github.com/conneroisu/appgen/internal/naming"
	"github.com/conneroisu/appgen/internal/plugins"
)

// Layout is a page layout keyed by its kebab-case name.
type Layout struct {
	Name string `json:"name" yaml:"name"`
	Src  string `json:"src" yaml:"src"`
}

// Middleware is a route middleware. Global middleware runs on every route.
type Middleware struct {
	Name   string `json:"name" yaml:"name"`
	Src    string `json:"src" yaml:"src"`
	Global bool   `json:"global" yaml:"global"`
}

// App is everything discovered for one build.
type App struct {
	Plugins    []plugins.Descriptor `json:"plugins" yaml:"plugins"`
	Layouts    []Layout             `json:"layouts" yaml:"layouts"`
	Middleware []Middleware         `json:"middleware" yaml:"middleware"`
}

var orderPrefixRE = regexp.MustCompile(`^(\d+)\.`)

// Scanner walks a project according to its configuration.
type Scanner struct {
	cfg    *config.Config
	logger logging.Logger
}

// New creates a Scanner for cfg.
func New(cfg *config.Config, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scanner{cfg: cfg, logger: logger.WithComponent("scanner")}
}

// Scan discovers plugins, layouts and middleware.
func (s *Scanner) Scan(ctx context.Context) (*App, error) {
	app := &App{}
	var err error

	if app.Plugins, err = s.ScanPlugins(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if app.Layouts, err = s.ScanLayouts(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if app.Middleware, err = s.ScanMiddleware(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "Project scanned",
		"plugins", len(app.Plugins),
		"layouts", len(app.Layouts),
		"middleware", len(app.Middleware))
	return app, nil
}

// ScanPlugins returns the plugins in the plugins directory followed by the
// plugins registered in the configuration. Top-level files and index files
// one directory down are plugins.
func (s *Scanner) ScanPlugins(ctx context.Context) ([]plugins.Descriptor, error) {
	dir := s.cfg.Dirs.Plugins
	exts := s.extPattern(s.cfg.Extensions)
	files, err := s.glob(dir, "*"+exts, "*/index"+exts)
	if err != nil {
		return nil, err
	}

	descriptors := make([]plugins.Descriptor, 0, len(files)+len(s.cfg.Plugins))
	for _, file := range files {
		d, err := s.pluginFromFile(file)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}

	for _, entry := range s.cfg.Plugins {
		d, err := s.pluginFromEntry(entry)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// ScanLayouts returns every layout under the layouts directory, recursively.
func (s *Scanner) ScanLayouts(ctx context.Context) ([]Layout, error) {
	dir := s.cfg.Dirs.Layouts
	files, err := s.glob(dir, "**/*"+s.extPattern(append([]string{".vue"}, s.cfg.Extensions...)))
	if err != nil {
		return nil, err
	}

	layouts := make([]Layout, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, file := range files {
		rel := strings.TrimSuffix(file, path.Ext(file))
		name := naming.KebabCase(rel)
		if first, dup := seen[name]; dup {
			s.logger.Warn(ctx, nil, "Layout name collision, keeping the first file",
				"layout", name, "kept", first, "skipped", file)
			continue
		}
		seen[name] = file
		layouts = append(layouts, Layout{Name: name, Src: s.srcPath(dir, file)})
	}
	return layouts, nil
}

// ScanMiddleware returns the top-level files in the middleware directory.
func (s *Scanner) ScanMiddleware(ctx context.Context) ([]Middleware, error) {
	dir := s.cfg.Dirs.Middleware
	files, err := s.glob(dir, "*"+s.extPattern(s.cfg.Extensions))
	if err != nil {
		return nil, err
	}

	middleware := make([]Middleware, 0, len(files))
	for _, file := range files {
		stem := naming.Stem(file)
		global := strings.HasSuffix(stem, ".global")
		stem = strings.TrimSuffix(stem, ".global")
		middleware = append(middleware, Middleware{
			Name:   naming.KebabCase(stem),
			Src:    s.srcPath(dir, file),
			Global: global,
		})
	}
	return middleware, nil
}

func (s *Scanner) pluginFromFile(file string) (plugins.Descriptor, error) {
	dir := s.cfg.Dirs.Plugins
	stem := naming.Stem(file)
	if stem == "index" && path.Dir(file) != "." {
		stem = path.Base(path.Dir(file))
	}

	d := plugins.Descriptor{Src: s.srcPath(dir, file), Mode: plugins.ModeAll}

	if m := orderPrefixRE.FindStringSubmatch(stem); m != nil {
		order, err := strconv.Atoi(m[1])
		if err == nil {
			d.Order = plugins.IntPtr(order)
			stem = stem[len(m[0]):]
		}
	}

	switch {
	case strings.HasSuffix(stem, ".client"):
		d.Mode = plugins.ModeClient
		stem = strings.TrimSuffix(stem, ".client")
	case strings.HasSuffix(stem, ".server"):
		d.Mode = plugins.ModeServer
		stem = strings.TrimSuffix(stem, ".server")
	}
	d.Name = naming.SafeVariableName(stem)

	metaFile := filepath.Join(s.cfg.SrcPath(dir), filepath.FromSlash(strings.TrimSuffix(file, path.Ext(file))+".meta.yaml"))
	meta, err := loadPluginMeta(metaFile)
	if err != nil {
		return d, err
	}
	if meta != nil {
		if err := meta.apply(&d); err != nil {
			return d, apperrors.Wrap(err, apperrors.ErrorTypeValidation, apperrors.ErrCodeInvalidPluginMeta,
				"invalid plugin metadata").WithFile(metaFile)
		}
	}
	return d, nil
}

func (s *Scanner) pluginFromEntry(entry config.PluginEntry) (plugins.Descriptor, error) {
	mode, err := plugins.ParseMode(entry.Mode)
	if err != nil {
		return plugins.Descriptor{}, apperrors.WrapConfig(err, "invalid plugin entry").WithFile(entry.Src)
	}
	enforce, err := plugins.ParseEnforce(entry.Enforce)
	if err != nil {
		return plugins.Descriptor{}, apperrors.WrapConfig(err, "invalid plugin entry").WithFile(entry.Src)
	}

	stem := naming.Stem(entry.Src)
	switch {
	case strings.HasSuffix(stem, ".client"):
		stem = strings.TrimSuffix(stem, ".client")
		if entry.Mode == "" {
			mode = plugins.ModeClient
		}
	case strings.HasSuffix(stem, ".server"):
		stem = strings.TrimSuffix(stem, ".server")
		if entry.Mode == "" {
			mode = plugins.ModeServer
		}
	}

	name := entry.Name
	if name == "" {
		name = naming.SafeVariableName(stem)
	}

	return plugins.Descriptor{
		Name:      name,
		Src:       filepath.ToSlash(s.cfg.SrcPath(entry.Src)),
		Mode:      mode,
		DependsOn: entry.DependsOn,
		Order:     entry.Order,
		Enforce:   enforce,
		Parallel:  entry.Parallel,
	}, nil
}

// glob matches patterns inside dir, drops ignored files and returns
// slash-separated paths relative to dir in sorted order.
func (s *Scanner) glob(dir string, patterns ...string) ([]string, error) {
	root := s.cfg.SrcPath(dir)
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapIO(err, apperrors.ErrCodeScanFailed, "failed to stat directory").WithFile(root)
	}
	if !info.IsDir() {
		return nil, apperrors.NewIOError(apperrors.ErrCodeScanFailed, "not a directory", nil).WithFile(root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, apperrors.WrapIO(err, apperrors.ErrCodeScanFailed, "failed to glob directory").WithFile(root)
		}
		for _, m := range matches {
			if seen[m] || s.ignored(path.Join(filepath.ToSlash(filepath.Clean(dir)), m)) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) ignored(rel string) bool {
	for _, pattern := range s.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) extPattern(exts []string) string {
	trimmed := make([]string, 0, len(exts))
	for _, ext := range exts {
		trimmed = append(trimmed, strings.TrimPrefix(ext, "."))
	}
	return ".{" + strings.Join(trimmed, ",") + "}"
}

func (s *Scanner) srcPath(dir, file string) string {
	return filepath.ToSlash(filepath.Join(s.cfg.SrcPath(dir), filepath.FromSlash(file)))
}
