package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/elbkind/feature-hub/internal/ctxlog"
)

// Registry holds every registered service definition, keyed by id and ordered
// by version. Definitions are read-only after registration, so any number of
// scopes may resolve against the registry concurrently.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string][]*entry
	externals *ExternalsValidator
}

// Option configures a Registry.
type Option func(*Registry)

// WithExternals sets the validator used for the externals consumers require.
// Without it, any required external fails validation.
func WithExternals(v *ExternalsValidator) Option {
	return func(r *Registry) {
		r.externals = v
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{entries: make(map[string][]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds definitions to the registry. Invalid definitions are reported
// together as a joined error; the valid ones are still registered. A
// definition whose id and version are already registered is skipped with a
// warning and the first registration is kept.
func (r *Registry) Register(ctx context.Context, defs ...*Definition) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	for _, def := range defs {
		e, err := newEntry(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		r.mu.Lock()
		if existing := r.find(def.ID, e.version); existing != nil {
			r.mu.Unlock()
			logger.Warn("Service definition already registered, skipping.", "id", def.ID, "version", e.version.String())
			continue
		}
		list := append(r.entries[def.ID], e)
		sort.SliceStable(list, func(i, j int) bool { return list[i].version.GreaterThan(list[j].version) })
		r.entries[def.ID] = list
		r.mu.Unlock()

		logger.Debug("Registered service definition.", "id", def.ID, "version", e.version.String(), "lifetime", def.Lifetime.String())
	}

	return errors.Join(errs...)
}

// Versions returns the registered versions of id, highest first.
func (r *Registry) Versions(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return versionStrings(r.entries[id])
}

// IDs returns the ids of all registered definitions in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// find returns the entry registered for exactly this id and version.
// Callers must hold r.mu.
func (r *Registry) find(id string, v *semver.Version) *entry {
	for _, e := range r.entries[id] {
		if e.version.Equal(v) {
			return e
		}
	}
	return nil
}

// best returns the highest registered version of id satisfying c, along with
// every registered version for error reporting.
func (r *Registry) best(id string, c *semver.Constraints) (*entry, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return selectVersion(r.entries[id], c), versionStrings(r.entries[id])
}

// selectVersion picks the first entry, in the given highest-first order, whose
// version satisfies c.
func selectVersion(entries []*entry, c *semver.Constraints) *entry {
	for _, e := range entries {
		if c.Check(e.version) {
			return e
		}
	}
	return nil
}

func versionStrings(entries []*entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.version.String())
	}
	return out
}

// sharedInstance holds the single instance of a process-wide definition.
type sharedInstance struct {
	mu    sync.Mutex
	done  bool
	value any
}

// get returns the cached instance, creating it on first use. Failed creations
// are not cached.
func (s *sharedInstance) get(create func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.value, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	s.value, s.done = v, true
	return v, nil
}
