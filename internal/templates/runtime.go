package templates

import (
	"context"

	"github.com/conneroisu/appgen/internal/naming"
)

var runtimeConfigTmpl = mustParse("runtime-config", `export const {{.Name}} = {{.Tree}}

export function useRuntimeConfig(key) {
  return key === undefined ? {{.Name}} : {{.Name}}[key]
}
`)

// RuntimeConfig exposes only the public runtime-config tree to the client.
var RuntimeConfig = Template{
	Filename: "runtime-config.mjs",
	Render: func(_ context.Context, c *Context) (string, error) {
		tree, err := naming.Literal(c.Config.PublicRuntimeConfig())
		if err != nil {
			return "", err
		}
		return execute(runtimeConfigTmpl, map[string]interface{}{
			"Name": "publicRuntimeConfig",
			"Tree": tree,
		})
	},
}

// ServerRuntimeConfig exposes the full runtime-config tree, private keys
// included, to server code.
var ServerRuntimeConfig = Template{
	Filename: "runtime-config.server.mjs",
	Render: func(_ context.Context, c *Context) (string, error) {
		tree, err := naming.Literal(c.Config.RuntimeConfig)
		if err != nil {
			return "", err
		}
		return execute(runtimeConfigTmpl, map[string]interface{}{
			"Name": "runtimeConfig",
			"Tree": tree,
		})
	},
}

var appConfigTmpl = mustParse("app-config", `export const experimental = {{.Experimental}}

export const modules = {{.Modules}}
`)

type moduleInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	ConfigKey string `json:"configKey,omitempty"`
}

// AppConfig records enabled experimental flags and installed modules.
var AppConfig = Template{
	Filename: "app.config.mjs",
	Render: func(_ context.Context, c *Context) (string, error) {
		experimental := make(map[string]bool, len(c.Config.Experimental))
		for flag, on := range c.Config.Experimental {
			if on {
				experimental[flag] = true
			}
		}

		modules := make([]moduleInfo, 0, len(c.Config.Modules))
		for _, m := range c.Config.Modules {
			modules = append(modules, moduleInfo{Name: m.Name, Version: m.Version, ConfigKey: m.ConfigKey})
		}

		experimentalLiteral, err := naming.Literal(experimental)
		if err != nil {
			return "", err
		}
		modulesLiteral, err := naming.Literal(modules)
		if err != nil {
			return "", err
		}
		return execute(appConfigTmpl, map[string]interface{}{
			"Experimental": experimentalLiteral,
			"Modules":      modulesLiteral,
		})
	},
}
