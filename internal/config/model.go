// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Defaults applied by Normalize.
const (
	DefaultConsumerID = "integrator"
	DefaultShareScope = "default"
	DefaultWorkers    = 4
)

// Model is the unified, format-agnostic representation of the integrator
// configuration.
type Model struct {
	Integrator  *Integrator
	FeatureApps []*FeatureApp
}

// Integrator configures the top-level consumer and the render loop.
type Integrator struct {
	ConsumerID string
	ShareScope string

	// MaxAttempts caps render attempts; zero means unbounded.
	MaxAttempts int
	// Timeout bounds one render invocation; zero means none.
	Timeout time.Duration
	// Workers bounds how many modules are preloaded concurrently.
	Workers int

	// Externals are provided by the host, as exact versions.
	Externals map[string]string
	// Dependencies are feature services the integrator declares in addition
	// to the orchestration services.
	Dependencies         map[string]string
	OptionalDependencies map[string]string
}

// FeatureApp places one feature app on the page.
type FeatureApp struct {
	ID string
	// Src is the client bundle, recorded as a hydration URL.
	Src string
	// ServerSrc is the module loaded on the server. It defaults to Src.
	ServerSrc string
	// Definition names a compiled-in definition to render directly, without
	// loading a module.
	Definition  string
	Stylesheets []Stylesheet
	// Config is handed to the feature app; null when absent.
	Config cty.Value
}

// Stylesheet is a stylesheet a feature app needs.
type Stylesheet struct {
	Href  string
	Media string
}

// ModuleID returns the id of the module loaded on the server.
func (f *FeatureApp) ModuleID() string {
	if f.ServerSrc != "" {
		return f.ServerSrc
	}
	return f.Src
}

// Normalize fills in defaults.
func (m *Model) Normalize() {
	if m.Integrator == nil {
		m.Integrator = &Integrator{}
	}
	in := m.Integrator
	if in.ConsumerID == "" {
		in.ConsumerID = DefaultConsumerID
	}
	if in.ShareScope == "" {
		in.ShareScope = DefaultShareScope
	}
	if in.Workers <= 0 {
		in.Workers = DefaultWorkers
	}
	for _, app := range m.FeatureApps {
		if app.Config.IsNull() {
			app.Config = cty.NullVal(cty.DynamicPseudoType)
		}
	}
}

// Validate reports every problem with the model.
func (m *Model) Validate() error {
	var errs []error
	if m.Integrator != nil {
		if m.Integrator.MaxAttempts < 0 {
			errs = append(errs, errors.New("integrator: max_attempts must not be negative"))
		}
		if m.Integrator.Timeout < 0 {
			errs = append(errs, errors.New("integrator: timeout must not be negative"))
		}
	}

	seen := make(map[string]bool, len(m.FeatureApps))
	for i, app := range m.FeatureApps {
		if app.ID == "" {
			errs = append(errs, fmt.Errorf("feature app #%d: id is empty", i+1))
			continue
		}
		if seen[app.ID] {
			errs = append(errs, fmt.Errorf("feature app %q: declared twice", app.ID))
		}
		seen[app.ID] = true
		if app.Definition == "" && app.ModuleID() == "" {
			errs = append(errs, fmt.Errorf("feature app %q: needs src, server_src or definition", app.ID))
		}
		for _, sheet := range app.Stylesheets {
			if sheet.Href == "" {
				errs = append(errs, fmt.Errorf("feature app %q: stylesheet without href", app.ID))
			}
		}
	}
	return errors.Join(errs...)
}

// Merge appends other into m. At most one of them may define the integrator.
func (m *Model) Merge(other *Model) error {
	if other.Integrator != nil {
		if m.Integrator != nil {
			return errors.New("integrator block defined more than once")
		}
		m.Integrator = other.Integrator
	}
	m.FeatureApps = append(m.FeatureApps, other.FeatureApps...)
	return nil
}
