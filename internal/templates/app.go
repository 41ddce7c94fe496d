package templates

import (
	"context"
	"fmt"
	"sort"

	"github.com/conneroisu/appgen/internal/naming"
)

var layoutsTmpl = mustParse("layouts", `import { defineAsyncComponent } from "vue"

export default {{.Layouts}}
`)

// Layouts maps layout names to lazily loaded components.
var Layouts = Template{
	Filename: "layouts.mjs",
	Render: func(_ context.Context, c *Context) (string, error) {
		entries := make([]naming.Entry, 0, len(c.App.Layouts))
		for _, l := range c.App.Layouts {
			entries = append(entries, naming.Entry{
				Key: l.Name,
				Value: fmt.Sprintf("defineAsyncComponent(() => import(%s).then(m => m.default || m))",
					naming.Quote(c.ImportPath("layouts.mjs", l.Src))),
			})
		}
		return execute(layoutsTmpl, map[string]interface{}{
			"Layouts": naming.ObjectFromRawEntries(entries),
		})
	},
}

var middlewareTmpl = mustParse("middleware", `{{range .Imports}}{{.}}
{{end}}
export const globalMiddleware = {{.Global}}

export const namedMiddleware = {{.Named}}
`)

// Middleware lists global middleware eagerly and named middleware lazily.
var Middleware = Template{
	Filename: "middleware.mjs",
	Render: func(_ context.Context, c *Context) (string, error) {
		var imports, global []string
		var named []naming.Entry
		for _, m := range c.App.Middleware {
			spec := c.ImportPath("middleware.mjs", m.Src)
			if m.Global {
				variable := naming.SafeVariableName(naming.CamelCase(m.Name)) + "_" + naming.ShortHash(c.rootRelative(m.Src))
				imports = append(imports, naming.Import(spec, variable))
				global = append(global, variable)
				continue
			}
			named = append(named, naming.Entry{
				Key:   m.Name,
				Value: fmt.Sprintf("() => import(%s)", naming.Quote(spec)),
			})
		}
		sort.SliceStable(named, func(i, j int) bool { return named[i].Key < named[j].Key })

		return execute(middlewareTmpl, map[string]interface{}{
			"Imports": imports,
			"Global":  naming.ArrayFromRaw(global),
			"Named":   naming.ObjectFromRawEntries(named),
		})
	},
}
