package plugins

import (
	"cmp"
	"context"
	"slices"
	"sort"

	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
)

// Annotated is a Descriptor joined against the plugin set it was resolved in.
type Annotated struct {
	Descriptor

	// Deps are the DependsOn entries present in the set, deduplicated, in
	// declaration order.
	Deps []string

	// Unresolved are DependsOn entries naming plugins outside the set.
	Unresolved []string

	// Position is the index of the plugin in discovery order.
	Position int
}

// Annotate resolves every plugin's DependsOn against the set. References to
// plugins outside the set are moved to Unresolved and take no part in
// ordering. When two plugins share a name the first one wins the lookup.
func Annotate(plugins []Descriptor) []Annotated {
	known := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if p.Name != "" {
			known[p.Name] = true
		}
	}

	annotated := make([]Annotated, len(plugins))
	for i, p := range plugins {
		a := Annotated{Descriptor: p, Position: i}
		seen := make(map[string]bool, len(p.DependsOn))
		for _, dep := range p.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if known[dep] {
				a.Deps = append(a.Deps, dep)
			} else {
				a.Unresolved = append(a.Unresolved, dep)
			}
		}
		annotated[i] = a
	}
	return annotated
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// CheckForCircularDependencies walks the Deps graph depth-first in discovery
// order and returns a *CycleError when a plugin is reached while still on the
// traversal stack. Every back edge found in the walk adds one cycle.
func CheckForCircularDependencies(plugins []Annotated) error {
	index := indexByName(plugins)
	state := make([]visitState, len(plugins))
	stack := make([]int, 0, len(plugins))
	var cycles [][]string

	var visit func(i int)
	visit = func(i int) {
		state[i] = visiting
		stack = append(stack, i)

		for _, dep := range plugins[i].Deps {
			j, ok := index[dep]
			if !ok {
				continue
			}
			switch state[j] {
			case unvisited:
				visit(j)
			case visiting:
				cycles = append(cycles, cyclePath(plugins, stack, j))
			}
		}

		stack = stack[:len(stack)-1]
		state[i] = visited
	}

	for i := range plugins {
		if state[i] == unvisited {
			visit(i)
		}
	}

	if len(cycles) == 0 {
		return nil
	}
	return &CycleError{Path: cycles[0], Cycles: cycles}
}

// cyclePath returns the names on stack from the first occurrence of closing
// to the top, followed by closing again.
func cyclePath(plugins []Annotated, stack []int, closing int) []string {
	start := slices.Index(stack, closing)
	path := make([]string, 0, len(stack)-start+1)
	for _, i := range stack[start:] {
		path = append(path, plugins[i].Name)
	}
	return append(path, plugins[closing].Name)
}

// Sort returns the plugins in execution order. Plugins are ranked by
// EffectiveOrder, ties keeping discovery order, and then emitted so that each
// plugin follows its Deps while staying as close to its rank as the
// dependencies allow.
func Sort(plugins []Annotated) ([]Annotated, error) {
	if err := CheckForCircularDependencies(plugins); err != nil {
		return nil, err
	}

	ranked := slices.Clone(plugins)
	slices.SortStableFunc(ranked, func(a, b Annotated) int {
		return cmp.Compare(a.EffectiveOrder(), b.EffectiveOrder())
	})

	index := indexByName(ranked)
	pending := make([]int, len(ranked))
	dependents := make([][]int, len(ranked))
	for i, p := range ranked {
		for _, dep := range p.Deps {
			j, ok := index[dep]
			if !ok {
				continue
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := make([]int, 0, len(ranked))
	for i := range ranked {
		if pending[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Annotated, 0, len(ranked))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, ranked[next])

		for _, d := range dependents[next] {
			pending[d]--
			if pending[d] == 0 {
				at := sort.SearchInts(ready, d)
				ready = slices.Insert(ready, at, d)
			}
		}
	}

	if len(ordered) != len(ranked) {
		// not reachable once the cycle check passed
		return nil, apperrors.NewInternalError(apperrors.ErrCodeInternalError,
			"plugin ordering left plugins unplaced", nil)
	}
	return ordered, nil
}

func indexByName(plugins []Annotated) map[string]int {
	index := make(map[string]int, len(plugins))
	for i, p := range plugins {
		if p.Name == "" {
			continue
		}
		if _, dup := index[p.Name]; !dup {
			index[p.Name] = i
		}
	}
	return index
}

// Resolver runs the full ordering pipeline for one build target.
type Resolver struct {
	logger logging.Logger
}

// NewResolver creates a resolver that reports unresolved references to logger.
func NewResolver(logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{logger: logger.WithComponent("plugins")}
}

// Resolve filters plugins for target, rejects duplicate names, annotates the
// dependency edges, rejects cycles and returns the execution order.
func (r *Resolver) Resolve(ctx context.Context, plugins []Descriptor, target Mode) ([]Annotated, error) {
	filtered := FilterByMode(plugins, target)

	if err := checkDuplicateNames(filtered); err != nil {
		return nil, err
	}

	annotated := Annotate(filtered)
	for _, p := range annotated {
		if len(p.Unresolved) > 0 {
			r.logger.Warn(ctx, nil, "Plugin depends on plugins that are not registered",
				"plugin", p.Name,
				"missing", p.Unresolved,
				"target", string(target))
		}
	}

	ordered, err := Sort(annotated)
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "Plugins ordered",
		"target", string(target),
		"count", len(ordered))
	return ordered, nil
}

func checkDuplicateNames(plugins []Descriptor) error {
	seen := make(map[string]string, len(plugins))
	for _, p := range plugins {
		if p.Name == "" {
			continue
		}
		if first, dup := seen[p.Name]; dup {
			return apperrors.NewValidationError(apperrors.ErrCodeDuplicatePlugin,
				"duplicate plugin name "+p.Name).
				WithContext("first", first).
				WithContext("second", p.Src)
		}
		seen[p.Name] = p.Src
	}
	return nil
}
