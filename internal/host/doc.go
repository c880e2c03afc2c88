// Package host renders a page of feature apps once. Each call to RenderOnce
// composes its own consumer scope, async SSR manager, harvesters and feature
// app manager, runs the convergence loop and returns the harvested result.
package host
