// Package featureapp plugs feature apps into the component tree.
//
// Feature app code is compiled into the binary and registered in a Catalog by
// name. A remote module only carries a manifest naming the catalog entry, so
// loading a module selects a definition rather than executing fetched code.
// A Manager, created per render invocation, loads definitions asynchronously
// and creates each feature app once, with its own child consumer scope.
package featureapp
