package featureapp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/elbkind/feature-hub/internal/render"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FeatureApp is a rendered fragment. One instance lives for a whole render
// invocation, so work it starts in one attempt can be used in the next.
type FeatureApp interface {
	Render(rc *render.Context) (string, error)
}

// Definition is a compiled-in feature app.
type Definition struct {
	Name                 string
	Dependencies         registry.Dependencies
	OptionalDependencies registry.Dependencies
	Create               func(env *Env) (FeatureApp, error)
}

// Env is handed to a definition's Create function.
type Env struct {
	Context      context.Context
	FeatureAppID string
	// Config is the feature app's configuration. It is null when none was
	// given.
	Config   cty.Value
	Services *registry.Scope
	Logger   *slog.Logger
}

// DecodeConfig decodes Config into target, a pointer to a struct with cty
// tags. A null config leaves target unchanged.
func (e *Env) DecodeConfig(target any) error {
	if !e.Config.IsKnown() || e.Config.IsNull() {
		return nil
	}
	if err := gocty.FromCtyValue(e.Config, target); err != nil {
		return fmt.Errorf("decoding config of %q: %w", e.FeatureAppID, err)
	}
	return nil
}

// Module is implemented by packages that contribute feature app definitions.
type Module interface {
	Register(c *Catalog)
}

// Catalog holds the feature app definitions known to the binary.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog creates a Catalog and registers the definitions of modules.
func NewCatalog(modules ...Module) *Catalog {
	c := &Catalog{defs: make(map[string]*Definition)}
	for _, m := range modules {
		m.Register(c)
	}
	return c
}

// Register adds a definition. It panics on an invalid or duplicate
// definition.
func (c *Catalog) Register(def *Definition) {
	if def == nil || def.Name == "" || def.Create == nil {
		panic("featureapp: definition needs a name and a Create function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[def.Name]; exists {
		panic(fmt.Sprintf("featureapp: definition %q registered twice", def.Name))
	}
	c.defs[def.Name] = def
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Names returns every registered name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
