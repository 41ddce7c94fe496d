package templates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/appgen/internal/naming"
)

var pluginTypesTmpl = mustParse("plugin-types", `import type { Plugin } from "#app"

type Decorate<T extends Record<string, any>> = { [K in keyof T as K extends string ? `+"`$${K}`"+` : never]: T[K] }

type InjectionType<A extends Plugin> = A extends { default: Plugin<infer T> } ? Decorate<T> : unknown

type PluginInjections = {{if .Imports}}{{join .Imports " &\n  "}}{{else}}{}{{end}}

declare module "#app" {
  interface AppContext extends PluginInjections {}
}

export {}
`)

// PluginTypes declares the injections contributed by every plugin, whatever
// its mode.
var PluginTypes = Template{
	Filename: "types/plugins.d.ts",
	Render: func(_ context.Context, c *Context) (string, error) {
		seen := make(map[string]bool, len(c.App.Plugins))
		var imports []string
		for _, p := range c.App.Plugins {
			if seen[p.Src] {
				continue
			}
			seen[p.Src] = true
			spec := stripScriptExt(c.ImportPath("types/plugins.d.ts", p.Src))
			imports = append(imports, fmt.Sprintf("InjectionType<typeof import(%s)>", naming.Quote(spec)))
		}
		return execute(pluginTypesTmpl, map[string]interface{}{"Imports": imports})
	},
}

var middlewareTypesTmpl = mustParse("middleware-types", `export type MiddlewareKey = {{.Middleware}}

export type LayoutKey = {{.Layouts}}

declare module "#app" {
  interface PageMeta {
    middleware?: MiddlewareKey | Array<MiddlewareKey>
    layout?: false | LayoutKey
  }
}
`)

// MiddlewareTypes narrows page metadata to the known middleware and layouts.
var MiddlewareTypes = Template{
	Filename: "types/middleware.d.ts",
	Render: func(_ context.Context, c *Context) (string, error) {
		var middleware, layouts []string
		for _, m := range c.App.Middleware {
			if !m.Global {
				middleware = append(middleware, m.Name)
			}
		}
		for _, l := range c.App.Layouts {
			layouts = append(layouts, l.Name)
		}
		return execute(middlewareTypesTmpl, map[string]interface{}{
			"Middleware": stringUnion(middleware),
			"Layouts":    stringUnion(layouts),
		})
	},
}

var schemaTypesTmpl = mustParse("schema-types", `export interface RuntimeConfig {{.Private}}

export interface PublicRuntimeConfig {{.Public}}

declare module "#app" {
  interface AppRuntimeConfig extends RuntimeConfig {}
  interface AppPublicRuntimeConfig extends PublicRuntimeConfig {}
}
`)

// SchemaTypes mirrors the runtime-config tree as TypeScript interfaces.
var SchemaTypes = Template{
	Filename: "types/schema.d.ts",
	Render: func(_ context.Context, c *Context) (string, error) {
		open := !c.Config.TypeScript.Strict
		return execute(schemaTypesTmpl, map[string]interface{}{
			"Private": objectType(c.Config.RuntimeConfig, 0, open),
			"Public":  objectType(c.Config.PublicRuntimeConfig(), 0, open),
		})
	},
}

var appTypesTmpl = mustParse("app-types", `/// <reference path="./plugins.d.ts" />
/// <reference path="./middleware.d.ts" />
/// <reference path="./schema.d.ts" />
{{if .Shim}}
declare module "*.vue" {
  import type { DefineComponent } from "vue"
  const component: DefineComponent<{}, {}, any>
  export default component
}
{{end}}
declare module "#app" {
  interface ModuleOptions {{.Modules}}
}

export {}
`)

// AppTypes ties the declaration files together and types installed module
// options.
var AppTypes = Template{
	Filename: "types/app.d.ts",
	Render: func(_ context.Context, c *Context) (string, error) {
		var entries []string
		for _, m := range c.Config.Modules {
			if m.ConfigKey == "" {
				continue
			}
			entries = append(entries, fmt.Sprintf("  %s?: Record<string, any>", propertyKey(m.ConfigKey)))
		}
		modules := "{}"
		if len(entries) > 0 {
			modules = "{\n  " + strings.Join(entries, "\n  ") + "\n  }"
		}
		return execute(appTypesTmpl, map[string]interface{}{
			"Shim":    c.Config.TypeScript.Shim,
			"Modules": modules,
		})
	},
}

func stringUnion(values []string) string {
	if len(values) == 0 {
		return "never"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = naming.Quote(v)
	}
	return strings.Join(quoted, " | ")
}

func propertyKey(key string) string {
	if naming.SafeVariableName(key) == key {
		return key
	}
	return naming.Quote(key)
}

// tsType infers a TypeScript type from a decoded YAML value.
func tsType(v interface{}, depth int, open bool) string {
	switch val := v.(type) {
	case nil:
		return "any"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case map[string]interface{}:
		return objectType(val, depth, open)
	case []interface{}:
		return arrayType(val, depth, open)
	default:
		return "any"
	}
}

func arrayType(items []interface{}, depth int, open bool) string {
	if len(items) == 0 {
		return "Array<any>"
	}
	seen := make(map[string]bool)
	var members []string
	for _, item := range items {
		t := tsType(item, depth, open)
		if !seen[t] {
			seen[t] = true
			members = append(members, t)
		}
	}
	return "Array<" + strings.Join(members, " | ") + ">"
}

func objectType(tree map[string]interface{}, depth int, open bool) string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth+1)
	var b strings.Builder
	b.WriteString("{\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s%s: %s,\n", indent, propertyKey(k), tsType(tree[k], depth+1, open))
	}
	if open {
		fmt.Fprintf(&b, "%s[key: string]: any,\n", indent)
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}")
	return b.String()
}
