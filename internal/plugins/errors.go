package plugins

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/conneroisu/appgen/internal/errors"
)

// ErrCircularDependency matches every *CycleError via errors.Is.
var ErrCircularDependency = errors.New("circular dependency detected in plugins")

// CycleError reports plugins whose dependsOn relations form a cycle.
type CycleError struct {
	// Path is the first cycle found, from the repeated plugin back to itself,
	// e.g. [a b c a].
	Path []string

	// Cycles holds every cycle found in the same traversal, Path included.
	Cycles [][]string
}

func (e *CycleError) Error() string {
	msg := ErrCircularDependency.Error() + ": " + strings.Join(e.Path, " -> ")
	switch extra := len(e.Cycles) - 1; {
	case extra == 1:
		msg += " (and 1 more cycle)"
	case extra > 1:
		msg += fmt.Sprintf(" (and %d more cycles)", extra)
	}
	return msg
}

// Is makes errors.Is(err, ErrCircularDependency) hold.
func (e *CycleError) Is(target error) bool {
	return target == ErrCircularDependency
}

// ToAppError converts the cycle into a fatal build error for the CLI.
func (e *CycleError) ToAppError() *apperrors.AppError {
	ae := apperrors.NewBuildError(apperrors.ErrCodeCircularDependency, "plugin order cannot be resolved", e).
		WithContext("cycle", e.Path)
	ae.Recoverable = false
	return ae
}
