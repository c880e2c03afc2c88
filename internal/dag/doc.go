// Package dag provides a small, concurrency-safe directed graph keyed by
// string IDs. The service registry uses it to validate the dependency graph of
// a consumer scope before any factory runs, so that a cycle between service
// definitions is reported at composition time instead of surfacing halfway
// through instantiation.
package dag
