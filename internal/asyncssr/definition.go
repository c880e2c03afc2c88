package asyncssr

import "github.com/elbkind/feature-hub/internal/registry"

// ID is the registry id of the async SSR manager.
const ID = "s2:async-ssr-manager"

// Version is the registry version of the async SSR manager.
const Version = "1.0.0"

// Definition returns the registry definition of a Manager configured with
// opts. Each top-level consumer scope gets its own Manager.
func Definition(opts Options) *registry.Definition {
	return &registry.Definition{
		ID:      ID,
		Version: Version,
		Create: func(env *registry.Environment) (any, error) {
			env.Logger.Debug("Async SSR manager created.", "max_attempts", opts.MaxAttempts, "timeout", opts.Timeout)
			return New(opts), nil
		},
	}
}
