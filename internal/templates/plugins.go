package templates

import (
	"context"

	"github.com/conneroisu/appgen/internal/naming"
	"github.com/conneroisu/appgen/internal/plugins"
)

var pluginsTmpl = mustParse("plugins", `{{range .Imports}}{{.}}
{{end}}
export const pluginMeta = {{.Meta}}

export default {{.Exports}}
`)

type pluginMeta struct {
	Name      string   `json:"name"`
	Parallel  bool     `json:"parallel"`
	DependsOn []string `json:"dependsOn"`
}

// ClientPlugins is the ordered registry of plugins shipped to the browser.
var ClientPlugins = Template{
	Filename: "plugins.client.mjs",
	Render: func(ctx context.Context, c *Context) (string, error) {
		return renderPlugins(ctx, c, "plugins.client.mjs", plugins.ModeClient)
	},
}

// ServerPlugins is the ordered registry of plugins run during server rendering.
var ServerPlugins = Template{
	Filename: "plugins.server.mjs",
	Render: func(ctx context.Context, c *Context) (string, error) {
		return renderPlugins(ctx, c, "plugins.server.mjs", plugins.ModeServer)
	},
}

func renderPlugins(ctx context.Context, c *Context, filename string, target plugins.Mode) (string, error) {
	ordered, err := c.Resolver.Resolve(ctx, c.App.Plugins, target)
	if err != nil {
		return "", err
	}

	imports := make([]string, 0, len(ordered))
	exports := make([]string, 0, len(ordered))
	meta := make([]pluginMeta, 0, len(ordered))
	for _, p := range ordered {
		variable := pluginVariable(c, p.Src)
		imports = append(imports, naming.Import(c.ImportPath(filename, p.Src), variable))
		exports = append(exports, variable)

		deps := p.Deps
		if deps == nil {
			deps = []string{}
		}
		meta = append(meta, pluginMeta{Name: p.Name, Parallel: p.Parallel, DependsOn: deps})
	}

	metaLiteral, err := naming.Literal(meta)
	if err != nil {
		return "", err
	}

	return execute(pluginsTmpl, map[string]interface{}{
		"Imports": imports,
		"Meta":    metaLiteral,
		"Exports": naming.ArrayFromRaw(exports),
	})
}

// pluginVariable derives a collision-free identifier from the plugin path.
func pluginVariable(c *Context, src string) string {
	return naming.SafeVariableName(naming.Stem(src)) + "_" + naming.ShortHash(c.rootRelative(src))
}
