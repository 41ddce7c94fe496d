// Package plugins resolves the execution order of application plugins.
//
// A build hands the resolver a freshly scanned list of Descriptors. The
// resolver filters them by target mode, joins their dependsOn references
// against the filtered set, rejects circular dependencies and produces a
// stable order in which every plugin runs after the plugins it depends on.
// Nothing is retained between calls.
package plugins

import (
	"fmt"
	"strings"
)

// Mode selects which target build includes a plugin.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// ParseMode converts a configuration value into a Mode. The empty string is
// ModeAll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "both":
		return ModeAll, nil
	case "client", "client-only":
		return ModeClient, nil
	case "server", "server-only":
		return ModeServer, nil
	default:
		return ModeAll, fmt.Errorf("unknown plugin mode %q", s)
	}
}

// Includes reports whether a plugin with mode m is part of the target build.
func (m Mode) Includes(target Mode) bool {
	switch target {
	case ModeClient, ModeServer:
		return m == "" || m == ModeAll || m == target
	default:
		return true
	}
}

// Enforce places a plugin in a coarse phase when no explicit order is given.
type Enforce string

const (
	EnforcePre     Enforce = "pre"
	EnforceDefault Enforce = "default"
	EnforcePost    Enforce = "post"
)

var enforceOrder = map[Enforce]int{
	EnforcePre:     -20,
	EnforceDefault: 0,
	EnforcePost:    20,
}

// ParseEnforce converts a configuration value into an Enforce phase.
func ParseEnforce(s string) (Enforce, error) {
	e := Enforce(strings.ToLower(strings.TrimSpace(s)))
	if e == "" {
		return EnforceDefault, nil
	}
	if _, ok := enforceOrder[e]; !ok {
		return EnforceDefault, fmt.Errorf("unknown enforce value %q", s)
	}
	return e, nil
}

// Descriptor describes one plugin discovered for a build.
type Descriptor struct {
	// Name identifies the plugin within one build and is what DependsOn refers to.
	Name string `json:"name" yaml:"name"`

	// Src is the location of the plugin implementation. The resolver never
	// interprets it.
	Src string `json:"src" yaml:"src"`

	Mode Mode `json:"mode" yaml:"mode"`

	// DependsOn lists plugins that must run before this one.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Order breaks ties among independent plugins; lower runs earlier.
	Order *int `json:"order,omitempty" yaml:"order,omitempty"`

	Enforce  Enforce `json:"enforce,omitempty" yaml:"enforce,omitempty"`
	Parallel bool    `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// EffectiveOrder is the explicit Order when set, otherwise the value implied
// by Enforce.
func (d Descriptor) EffectiveOrder() int {
	if d.Order != nil {
		return *d.Order
	}
	return enforceOrder[d.Enforce]
}

// FilterByMode returns the plugins included in the target build, keeping
// their relative order. ModeAll keeps everything.
func FilterByMode(plugins []Descriptor, target Mode) []Descriptor {
	filtered := make([]Descriptor, 0, len(plugins))
	for _, p := range plugins {
		if p.Mode.Includes(target) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// IntPtr is a helper for building Descriptors with an Order hint.
func IntPtr(v int) *int {
	return &v
}
