// Package loader fetches remote feature app modules.
//
// A module is identified by a URL. Fetching it yields a JSON manifest that
// names the compiled-in feature app definition to use, its version and the
// externals it needs from the host. Modules are loaded inside a share scope
// that must be initialized once, before the first load.
package loader
