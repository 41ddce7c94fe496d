// Package templates renders the virtual source files generated for a
// project: plugin registries, layout and middleware maps, runtime-config
// accessors and TypeScript declarations.
//
// Every template is a pure function of a read-only Context. Templates that
// emit a plugin list resolve the plugin order first, so a dependency cycle
// aborts the render instead of producing a partial registry.
package templates

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
	"github.com/conneroisu/appgen/internal/naming"
	"github.com/conneroisu/appgen/internal/plugins"
	"github.com/conneroisu/appgen/internal/scanner"
)

// Context is the build state handed to every template.
type Context struct {
	Config   *config.Config
	App      *scanner.App
	Resolver *plugins.Resolver
	Logger   logging.Logger
}

// NewContext wires a Context, creating the resolver from logger.
func NewContext(cfg *config.Config, app *scanner.App, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if app == nil {
		app = &scanner.App{}
	}
	return &Context{
		Config:   cfg,
		App:      app,
		Resolver: plugins.NewResolver(logger),
		Logger:   logger.WithComponent("templates"),
	}
}

// Template produces one generated file, relative to the build directory.
type Template struct {
	Filename string
	Render   func(ctx context.Context, c *Context) (string, error)
}

// Default returns every template appgen writes, in write order.
func Default() []Template {
	return []Template{
		ClientPlugins,
		ServerPlugins,
		Layouts,
		Middleware,
		RuntimeConfig,
		ServerRuntimeConfig,
		AppConfig,
		PluginTypes,
		MiddlewareTypes,
		SchemaTypes,
		AppTypes,
	}
}

// ByFilename looks a template up by its output name.
func ByFilename(filename string) (Template, bool) {
	for _, t := range Default() {
		if t.Filename == filename {
			return t, true
		}
	}
	return Template{}, false
}

// ImportPath returns src as a specifier relative to the directory the
// generated file lands in.
func (c *Context) ImportPath(filename, src string) string {
	from, err := filepath.Abs(filepath.Dir(c.Config.BuildPath(filename)))
	if err != nil {
		return src
	}
	to, err := filepath.Abs(filepath.FromSlash(src))
	if err != nil {
		return src
	}
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return src
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

// rootRelative is src relative to the project root, used for stable hashes.
func (c *Context) rootRelative(src string) string {
	root, err := filepath.Abs(c.Config.RootDir)
	if err != nil {
		return src
	}
	abs, err := filepath.Abs(filepath.FromSlash(src))
	if err != nil {
		return src
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return src
	}
	return filepath.ToSlash(rel)
}

var funcs = template.FuncMap{
	"quote":    naming.Quote,
	"safeName": naming.SafeVariableName,
	"join":     strings.Join,
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

func execute(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", apperrors.NewBuildError(apperrors.ErrCodeTemplateRender,
			"failed to execute template", err).WithComponent(tmpl.Name())
	}
	return buf.String(), nil
}

func stripScriptExt(p string) string {
	switch ext := filepath.Ext(p); ext {
	case ".ts", ".mts", ".js", ".mjs":
		return strings.TrimSuffix(p, ext)
	default:
		return p
	}
}
