package featureapp

import (
	"fmt"

	"github.com/elbkind/feature-hub/internal/harvest"
	"github.com/elbkind/feature-hub/internal/render"
	"github.com/zclconf/go-cty/cty"
)

// LoaderNode renders a feature app whose definition comes from a remote
// module. While the module loads it renders nothing and registers the load as
// pending work, so the render is repeated once the definition is available.
type LoaderNode struct {
	Manager      *Manager
	FeatureAppID string
	// ModuleID identifies the module loaded on the server.
	ModuleID string
	// HydrationURL is the client bundle of the same feature app.
	HydrationURL string
	Stylesheets  []harvest.Stylesheet
	Config       cty.Value
}

// Render implements render.Node.
func (n *LoaderNode) Render(rc *render.Context) (string, error) {
	rc.AddHydrationURL(n.HydrationURL)
	rc.AddStylesheets(n.Stylesheets...)

	a := n.Manager.AsyncDefinition(rc.Context(), n.ModuleID)
	if !a.Done() {
		rc.Register(a.Pending())
		return "", nil
	}
	def, module, err := a.Result()
	if err != nil {
		// The rejected token fails the render with the load error.
		rc.Register(a.Pending())
		return "", nil
	}

	app, err := n.Manager.Scope(rc.Context(), n.FeatureAppID, def, module, n.Config)
	if err != nil {
		return "", err
	}
	markup, err := app.Render(rc.With("feature_app", n.FeatureAppID))
	if err != nil {
		return "", fmt.Errorf("rendering feature app %q: %w", n.FeatureAppID, err)
	}
	return markup, nil
}

// Node renders a compiled-in feature app directly, without a remote module.
type Node struct {
	Manager      *Manager
	FeatureAppID string
	Definition   *Definition
	Config       cty.Value
}

// Render implements render.Node.
func (n *Node) Render(rc *render.Context) (string, error) {
	app, err := n.Manager.Scope(rc.Context(), n.FeatureAppID, n.Definition, nil, n.Config)
	if err != nil {
		return "", err
	}
	markup, err := app.Render(rc.With("feature_app", n.FeatureAppID))
	if err != nil {
		return "", fmt.Errorf("rendering feature app %q: %w", n.FeatureAppID, err)
	}
	return markup, nil
}
