package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotDeclared is returned by Scope.Get for an id the consumer did not
	// declare as a dependency.
	ErrNotDeclared = errors.New("service not declared as a dependency")
	// ErrLifetimeMismatch is returned when a process-wide definition depends on
	// a scoped one, which would leak one scope's instance into every other.
	ErrLifetimeMismatch = errors.New("process-wide service depends on a scoped service")
)

// UnsatisfiedDependencyError reports a declared dependency that no registered
// definition can satisfy. It is a composition-time failure and is never
// retried.
type UnsatisfiedDependencyError struct {
	ID       string
	Range    string
	Consumer string
	// Available lists the registered versions of ID, highest first.
	Available []string
	// Err is set when the range itself could not be parsed.
	Err error
}

// Error implements the error interface.
func (e *UnsatisfiedDependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency %q of consumer %q has an invalid version range %q: %v", e.ID, e.Consumer, e.Range, e.Err)
	}
	if len(e.Available) == 0 {
		return fmt.Sprintf("dependency %q of consumer %q is not registered (requested %q)", e.ID, e.Consumer, e.Range)
	}
	return fmt.Sprintf("dependency %q of consumer %q cannot be satisfied: requested %q, registered [%s]",
		e.ID, e.Consumer, e.Range, strings.Join(e.Available, ", "))
}

// Unwrap returns the range parse error, if any.
func (e *UnsatisfiedDependencyError) Unwrap() error {
	return e.Err
}

// CircularDependencyError reports a dependency cycle between service
// definitions. Chain follows dependency edges: each id depends on the next.
type CircularDependencyError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return "circular service dependency: " + strings.Join(e.Chain, " -> ")
}

// UnsatisfiedExternalError reports an external required by a consumer that the
// host does not provide in a matching version.
type UnsatisfiedExternalError struct {
	Name  string
	Range string
	// Provided is the version offered by the host, empty when the external is
	// not provided at all.
	Provided string
	Err      error
}

// Error implements the error interface.
func (e *UnsatisfiedExternalError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("external %q has an invalid version range %q: %v", e.Name, e.Range, e.Err)
	case e.Provided == "":
		return fmt.Sprintf("external %q is required (%q) but not provided by the host", e.Name, e.Range)
	default:
		return fmt.Sprintf("external %q is provided in version %s, which does not satisfy %q", e.Name, e.Provided, e.Range)
	}
}

// Unwrap returns the range parse error, if any.
func (e *UnsatisfiedExternalError) Unwrap() error {
	return e.Err
}

// InvalidDefinitionError reports a definition rejected by Register.
type InvalidDefinitionError struct {
	ID      string
	Version string
	Reason  string
	Err     error
}

// Error implements the error interface.
func (e *InvalidDefinitionError) Error() string {
	msg := fmt.Sprintf("invalid service definition %q (version %q): %s", e.ID, e.Version, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *InvalidDefinitionError) Unwrap() error {
	return e.Err
}
