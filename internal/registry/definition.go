package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Dependencies maps a service id to the version range a consumer requires,
// e.g. {"s2:async-ssr-manager": "^1.0.0"}.
type Dependencies map[string]string

// Lifetime controls how widely a service instance is shared.
type Lifetime int

const (
	// Scoped instances are created once per top-level consumer scope.
	Scoped Lifetime = iota
	// ProcessWide instances are created once per Registry and shared by every
	// scope. A process-wide definition may only depend on other process-wide
	// definitions.
	ProcessWide
)

// String returns the lifetime name used in logs.
func (l Lifetime) String() string {
	if l == ProcessWide {
		return "process-wide"
	}
	return "scoped"
}

// Definition describes one version of a service. It must not be modified
// after it has been registered.
type Definition struct {
	ID      string
	Version string

	Dependencies         Dependencies
	OptionalDependencies Dependencies

	Lifetime Lifetime

	// Create builds the service. It runs at most once per top-level scope (or
	// once per registry for ProcessWide definitions).
	Create func(env *Environment) (any, error)
}

// Environment is handed to a definition's factory.
type Environment struct {
	// Context is the context of the Get call that triggered instantiation.
	Context context.Context
	// Logger is scoped to the service being created.
	Logger *slog.Logger
	// ConsumerID is the id of the top-level consumer that owns the instance.
	// It is empty for process-wide services.
	ConsumerID string
	// Services holds the service's resolved dependencies, bound to the
	// service's own id. Optional dependencies that could not be resolved are
	// absent.
	Services map[string]any
}

// Dependency returns the dependency registered under id, asserted to T.
func Dependency[T any](env *Environment, id string) (T, bool) {
	var zero T
	v, ok := env.Services[id]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Binder is implemented by service instances that hand each consumer its own
// view of a shared instance.
type Binder interface {
	Bind(consumerID string) any
}

func bind(instance any, consumerID string) any {
	if b, ok := instance.(Binder); ok {
		return b.Bind(consumerID)
	}
	return instance
}

// entry is a validated, registered definition.
type entry struct {
	def     *Definition
	version *semver.Version
	ranges  map[string]*semver.Constraints
	shared  *sharedInstance
}

func newEntry(def *Definition) (*entry, error) {
	if def == nil {
		return nil, &InvalidDefinitionError{Reason: "definition is nil"}
	}
	if def.ID == "" {
		return nil, &InvalidDefinitionError{Version: def.Version, Reason: "id is empty"}
	}
	if def.Create == nil {
		return nil, &InvalidDefinitionError{ID: def.ID, Version: def.Version, Reason: "factory is nil"}
	}
	v, err := semver.StrictNewVersion(def.Version)
	if err != nil {
		return nil, &InvalidDefinitionError{ID: def.ID, Version: def.Version, Reason: "version is not a semantic version", Err: err}
	}

	e := &entry{def: def, version: v, ranges: make(map[string]*semver.Constraints)}
	for _, deps := range []Dependencies{def.Dependencies, def.OptionalDependencies} {
		for id, rng := range deps {
			c, err := semver.NewConstraint(rng)
			if err != nil {
				return nil, &InvalidDefinitionError{ID: def.ID, Version: def.Version, Reason: fmt.Sprintf("dependency %q has an invalid range %q", id, rng), Err: err}
			}
			e.ranges[id] = c
		}
	}
	if def.Lifetime == ProcessWide {
		e.shared = &sharedInstance{}
	}
	return e, nil
}

// dependencyIDs returns the ids of all declared dependencies in stable order,
// each flagged as optional or not.
func (e *entry) dependencyIDs() []depRef {
	refs := make([]depRef, 0, len(e.def.Dependencies)+len(e.def.OptionalDependencies))
	for id, rng := range e.def.Dependencies {
		refs = append(refs, depRef{id: id, rng: rng})
	}
	for id, rng := range e.def.OptionalDependencies {
		if _, required := e.def.Dependencies[id]; required {
			continue
		}
		refs = append(refs, depRef{id: id, rng: rng, optional: true})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].id < refs[j].id })
	return refs
}

func (e *entry) String() string {
	return e.def.ID + "@" + e.version.String()
}

type depRef struct {
	id       string
	rng      string
	optional bool
}
