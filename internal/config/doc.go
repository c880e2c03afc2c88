// SPDX-License-Identifier: MIT

// Package config defines the format-agnostic configuration model of the
// integrator, and the Loader interface implemented by the HCL and YAML
// packages.
//
// The Model describes how one page is composed: the integrator's own service
// dependencies, the externals the host provides, and the feature apps placed
// on the page.
package config
