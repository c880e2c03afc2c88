// Package registry implements the versioned service registry that sits at the
// center of a feature hub.
//
// Services are registered as Definitions: a factory keyed by an id and a
// semantic version, together with the version ranges of the services it
// depends on. Consumers (the integrator, or a fragment) never construct
// services themselves. They declare which ids they need and which version
// range each must satisfy, and receive a Scope bound to the highest
// registered versions matching those ranges.
//
// # Resolution
//
// Resolution happens when a scope is created, not when a service is first
// used. For every declared id the registry picks the highest registered
// version satisfying the requested range, then does the same for that
// definition's own dependencies. A range that no registered version satisfies
// is reported as *UnsatisfiedDependencyError and no scope is returned. The
// resolved graph is checked for cycles before the scope is handed out.
//
// # Instantiation
//
// Factories run lazily, on the first Get of an id, and at most once per
// top-level scope. Child scopes created for nested consumers share their
// top-level scope's version table and instance cache, so a fragment asking
// for a service the integrator already uses receives the same instance.
// Definitions marked ProcessWide are instantiated once per Registry instead.
//
// Instances implementing Binder hand each consumer its own binding, which is
// how per-consumer services such as the serialized state collector know who
// is writing.
package registry
