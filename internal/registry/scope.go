package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/dag"
)

// Declaration is what a consumer asks of the registry when its scope is
// created.
type Declaration struct {
	Dependencies         Dependencies
	OptionalDependencies Dependencies
	// Externals are the externals the consumer requires from the host,
	// checked against the registry's ExternalsValidator.
	Externals Externals
}

// Scope is a consumer's bound view of the registry. A Scope is safe for
// concurrent use.
type Scope struct {
	root       *root
	consumerID string
	declared   map[string]*entry
	// bindings memoizes what Get returned per id, guarded by root.mu.
	bindings map[string]any
}

// root is the state shared by a top-level scope and all of its children.
type root struct {
	registry   *Registry
	consumerID string

	mu         sync.Mutex
	resolved   map[string]*entry
	instances  map[string]any
	inProgress map[string]bool
}

// CreateConsumerScope resolves a top-level consumer's declaration. Every
// required dependency, and transitively every dependency of the selected
// definitions, must resolve; otherwise an *UnsatisfiedDependencyError is
// returned. Cycles are reported as *CircularDependencyError. No factory runs
// here.
func (r *Registry) CreateConsumerScope(ctx context.Context, consumerID string, decl Declaration) (*Scope, error) {
	rt := &root{
		registry:   r,
		consumerID: consumerID,
		resolved:   make(map[string]*entry),
		instances:  make(map[string]any),
		inProgress: make(map[string]bool),
	}
	return rt.newScope(ctx, consumerID, decl)
}

// Child creates a scope for a nested consumer, such as a fragment rendered by
// the top-level consumer. The child shares the top-level version table and
// instances, so its ranges must agree with versions already resolved there.
func (s *Scope) Child(ctx context.Context, consumerID string, decl Declaration) (*Scope, error) {
	return s.root.newScope(ctx, consumerID, decl)
}

// ConsumerID returns the id of the consumer this scope is bound to.
func (s *Scope) ConsumerID() string {
	return s.consumerID
}

// Version returns the version id resolved to for this consumer.
func (s *Scope) Version(id string) (string, bool) {
	e, ok := s.declared[id]
	if !ok {
		return "", false
	}
	return e.version.String(), true
}

// Has reports whether id was declared and resolved for this consumer. Unresolved
// optional dependencies report false.
func (s *Scope) Has(id string) bool {
	_, ok := s.declared[id]
	return ok
}

// Get returns the service registered under id, instantiating it and its
// dependencies on first use. Repeated calls with the same id return the
// identical value.
func (s *Scope) Get(ctx context.Context, id string) (any, error) {
	if _, ok := s.declared[id]; !ok {
		return nil, fmt.Errorf("%w: %q is not a dependency of %q", ErrNotDeclared, id, s.consumerID)
	}

	s.root.mu.Lock()
	defer s.root.mu.Unlock()

	if b, ok := s.bindings[id]; ok {
		return b, nil
	}
	instance, err := s.root.instance(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	b := bind(instance, s.consumerID)
	s.bindings[id] = b
	return b, nil
}

// Get is the typed form of Scope.Get.
func Get[T any](ctx context.Context, s *Scope, id string) (T, error) {
	var zero T
	v, err := s.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T, not %T", id, v, zero)
	}
	return t, nil
}

func (rt *root) newScope(ctx context.Context, consumerID string, decl Declaration) (*Scope, error) {
	logger := ctxlog.FromContext(ctx).With("consumer", consumerID)

	if err := rt.registry.externals.Validate(decl.Externals); err != nil {
		return nil, fmt.Errorf("consumer %q: %w", consumerID, err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	res := &resolution{root: rt, pending: make(map[string]*entry), logger: logger}
	declared := make(map[string]*entry)
	for _, ref := range declarationRefs(decl) {
		e, err := res.resolve(consumerID, ref)
		if err != nil {
			return nil, err
		}
		if e != nil {
			declared[ref.id] = e
		}
	}

	if err := res.checkCycles(); err != nil {
		return nil, err
	}
	for id, e := range res.pending {
		rt.resolved[id] = e
		logger.Debug("Resolved service version.", "id", id, "version", e.version.String())
	}

	logger.Debug("Consumer scope created.", "dependencies", len(declared))
	return &Scope{
		root:       rt,
		consumerID: consumerID,
		declared:   declared,
		bindings:   make(map[string]any),
	}, nil
}

// instance returns the instance for id, creating it and its dependencies.
// chain is the path of ids currently being instantiated. Callers must hold
// rt.mu.
func (rt *root) instance(ctx context.Context, id string, chain []string) (any, error) {
	if v, ok := rt.instances[id]; ok {
		return v, nil
	}
	if rt.inProgress[id] {
		return nil, &CircularDependencyError{Chain: cycleFrom(chain, id)}
	}
	e, ok := rt.resolved[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q was never resolved in scope %q", ErrNotDeclared, id, rt.consumerID)
	}

	rt.inProgress[id] = true
	defer delete(rt.inProgress, id)

	create := func() (any, error) {
		services := make(map[string]any)
		for _, dep := range e.dependencyIDs() {
			if _, ok := rt.resolved[dep.id]; !ok {
				continue
			}
			v, err := rt.instance(ctx, dep.id, append(chain, id))
			if err != nil {
				return nil, err
			}
			services[dep.id] = bind(v, id)
		}

		consumerID := rt.consumerID
		if e.def.Lifetime == ProcessWide {
			consumerID = ""
		}
		logger := ctxlog.FromContext(ctx).With("service", e.String())
		v, err := e.def.Create(&Environment{
			Context:    ctx,
			Logger:     logger,
			ConsumerID: consumerID,
			Services:   services,
		})
		if err != nil {
			return nil, fmt.Errorf("creating service %s: %w", e, err)
		}
		logger.Debug("Service instantiated.", "lifetime", e.def.Lifetime.String())
		return v, nil
	}

	var (
		v   any
		err error
	)
	if e.shared != nil {
		v, err = e.shared.get(create)
	} else {
		v, err = create()
	}
	if err != nil {
		return nil, err
	}
	rt.instances[id] = v
	return v, nil
}

func cycleFrom(chain []string, id string) []string {
	for i, c := range chain {
		if c == id {
			return append(append([]string{}, chain[i:]...), id)
		}
	}
	return append(append([]string{}, chain...), id)
}

// resolution accumulates the versions selected while creating one scope.
// Nothing is written to the shared version table until the whole declaration
// has resolved.
type resolution struct {
	root    *root
	pending map[string]*entry
	logger  *slog.Logger
}

func (res *resolution) lookup(id string) *entry {
	if e, ok := res.pending[id]; ok {
		return e
	}
	return res.root.resolved[id]
}

// resolve selects the entry for ref on behalf of consumer. It returns a nil
// entry and nil error for optional dependencies that cannot be satisfied.
func (res *resolution) resolve(consumer string, ref depRef) (*entry, error) {
	c, err := semver.NewConstraint(ref.rng)
	if err != nil {
		return nil, &UnsatisfiedDependencyError{ID: ref.id, Range: ref.rng, Consumer: consumer, Err: err}
	}

	if e := res.lookup(ref.id); e != nil {
		if c.Check(e.version) {
			return e, nil
		}
		return res.unsatisfied(consumer, ref, []string{e.version.String()})
	}

	e, available := res.root.registry.best(ref.id, c)
	if e == nil {
		return res.unsatisfied(consumer, ref, available)
	}

	var snapshot map[string]*entry
	if ref.optional {
		snapshot = make(map[string]*entry, len(res.pending))
		for k, v := range res.pending {
			snapshot[k] = v
		}
	}
	res.pending[ref.id] = e

	for _, dep := range e.dependencyIDs() {
		depEntry, err := res.resolve(e.def.ID, dep)
		if err != nil {
			var unsatisfied *UnsatisfiedDependencyError
			if ref.optional && errors.As(err, &unsatisfied) {
				res.pending = snapshot
				res.logger.Info("Optional dependency dropped because its own dependencies cannot be resolved.", "id", ref.id, "cause", err)
				return nil, nil
			}
			return nil, err
		}
		if depEntry != nil && e.def.Lifetime == ProcessWide && depEntry.def.Lifetime != ProcessWide {
			return nil, fmt.Errorf("%w: %s depends on %s", ErrLifetimeMismatch, e, depEntry)
		}
	}
	return e, nil
}

func (res *resolution) unsatisfied(consumer string, ref depRef, available []string) (*entry, error) {
	if ref.optional {
		res.logger.Info("Optional dependency could not be resolved, skipping.", "id", ref.id, "range", ref.rng, "requested_by", consumer)
		return nil, nil
	}
	return nil, &UnsatisfiedDependencyError{ID: ref.id, Range: ref.rng, Consumer: consumer, Available: available}
}

// checkCycles validates the dependency graph of every resolved entry.
func (res *resolution) checkCycles() error {
	all := make(map[string]*entry, len(res.root.resolved)+len(res.pending))
	for id, e := range res.root.resolved {
		all[id] = e
	}
	for id, e := range res.pending {
		all[id] = e
	}

	g := dag.New()
	for id := range all {
		g.AddNode(id)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, dep := range all[id].dependencyIDs() {
			if _, ok := all[dep.id]; !ok {
				continue
			}
			if dep.id == id {
				return &CircularDependencyError{Chain: []string{id, id}}
			}
			if err := g.AddEdge(dep.id, id); err != nil {
				return err
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			return &CircularDependencyError{Chain: cycle.Path}
		}
		return err
	}
	return nil
}

func declarationRefs(decl Declaration) []depRef {
	refs := make([]depRef, 0, len(decl.Dependencies)+len(decl.OptionalDependencies))
	for id, rng := range decl.Dependencies {
		refs = append(refs, depRef{id: id, rng: rng})
	}
	for id, rng := range decl.OptionalDependencies {
		if _, required := decl.Dependencies[id]; required {
			continue
		}
		refs = append(refs, depRef{id: id, rng: rng, optional: true})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].id < refs[j].id })
	return refs
}
