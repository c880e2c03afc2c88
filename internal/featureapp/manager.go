package featureapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/loader"
	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// ErrUnknownDefinition is returned when a definition name is not in the
// catalog.
var ErrUnknownDefinition = errors.New("featureapp: unknown definition")

// ModuleLoader loads remote modules.
type ModuleLoader interface {
	Load(ctx context.Context, moduleID string) (*loader.Module, error)
	// Cached returns a module that has already been loaded.
	Cached(moduleID string) (*loader.Module, bool)
}

// Manager creates the feature apps of one render invocation.
type Manager struct {
	loader  ModuleLoader
	catalog *Catalog
	parent  *registry.Scope

	mu    sync.Mutex
	loads map[string]*AsyncDefinition
	apps  map[string]*instance
}

type instance struct {
	name string
	app  FeatureApp
}

// NewManager creates a Manager. Feature app scopes are children of parent.
func NewManager(l ModuleLoader, catalog *Catalog, parent *registry.Scope) *Manager {
	return &Manager{
		loader:  l,
		catalog: catalog,
		parent:  parent,
		loads:   make(map[string]*AsyncDefinition),
		apps:    make(map[string]*instance),
	}
}

// AsyncDefinition is a definition being loaded from a remote module.
type AsyncDefinition struct {
	ModuleID string

	pending *asyncssr.Pending
	mu      sync.Mutex
	def     *Definition
	module  *loader.Module
	err     error
}

// Pending returns the token that settles when the load finishes.
func (a *AsyncDefinition) Pending() *asyncssr.Pending {
	return a.pending
}

// Done reports whether the load has finished.
func (a *AsyncDefinition) Done() bool {
	return a.pending.Settled()
}

// Result returns the loaded definition and module, or the load error. All
// values are nil while the load is in flight.
func (a *AsyncDefinition) Result() (*Definition, *loader.Module, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.def, a.module, a.err
}

// AsyncDefinition returns the load of moduleID, starting it on first use.
func (m *Manager) AsyncDefinition(ctx context.Context, moduleID string) *AsyncDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.loads[moduleID]; ok {
		return a
	}

	if module, ok := m.loader.Cached(moduleID); ok {
		def, err := m.definitionOf(moduleID, module)
		a := &AsyncDefinition{ModuleID: moduleID, def: def, module: module, err: err}
		if err != nil {
			a.pending = asyncssr.Rejected(err)
		} else {
			a.pending = asyncssr.Resolved(def)
		}
		m.loads[moduleID] = a
		return a
	}

	p, settle := asyncssr.NewPending()
	a := &AsyncDefinition{ModuleID: moduleID, pending: p}
	m.loads[moduleID] = a

	go func() {
		def, module, err := m.load(ctx, moduleID)
		a.mu.Lock()
		a.def, a.module, a.err = def, module, err
		a.mu.Unlock()
		settle(def, err)
	}()
	return a
}

func (m *Manager) load(ctx context.Context, moduleID string) (*Definition, *loader.Module, error) {
	module, err := m.loader.Load(ctx, moduleID)
	if err != nil {
		return nil, nil, err
	}
	def, err := m.definitionOf(moduleID, module)
	if err != nil {
		return nil, nil, err
	}
	return def, module, nil
}

func (m *Manager) definitionOf(moduleID string, module *loader.Module) (*Definition, error) {
	def, ok := m.catalog.Lookup(module.Manifest.Name)
	if !ok {
		return nil, fmt.Errorf("%w: module %q names %q", ErrUnknownDefinition, moduleID, module.Manifest.Name)
	}
	return def, nil
}

// Scope returns the feature app registered under featureAppID, creating it
// from def on first use. The app gets a child consumer scope with the
// definition's dependencies and the externals of module, which may be nil.
func (m *Manager) Scope(ctx context.Context, featureAppID string, def *Definition, module *loader.Module, config cty.Value) (FeatureApp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.apps[featureAppID]; ok {
		if inst.name != def.Name {
			return nil, fmt.Errorf("feature app id %q is already used by definition %q", featureAppID, inst.name)
		}
		return inst.app, nil
	}

	logger := ctxlog.FromContext(ctx).With("feature_app", featureAppID, "definition", def.Name)

	decl := registry.Declaration{
		Dependencies:         def.Dependencies,
		OptionalDependencies: def.OptionalDependencies,
	}
	if module != nil {
		decl.Externals = module.Manifest.Externals
	}

	var services *registry.Scope
	if m.parent != nil {
		s, err := m.parent.Child(ctxlog.WithLogger(ctx, logger), featureAppID, decl)
		if err != nil {
			return nil, fmt.Errorf("feature app %q: %w", featureAppID, err)
		}
		services = s
	} else if len(decl.Dependencies) > 0 {
		return nil, fmt.Errorf("feature app %q declares dependencies but no service scope is available", featureAppID)
	}

	app, err := def.Create(&Env{
		Context:      ctx,
		FeatureAppID: featureAppID,
		Config:       config,
		Services:     services,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating feature app %q: %w", featureAppID, err)
	}

	m.apps[featureAppID] = &instance{name: def.Name, app: app}
	logger.Debug("Feature app created.")
	return app, nil
}
