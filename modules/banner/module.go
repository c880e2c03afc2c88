// Package banner provides a feature app that renders a static heading from
// its configuration.
package banner

import (
	"errors"

	"github.com/elbkind/feature-hub/internal/featureapp"
	"github.com/elbkind/feature-hub/internal/render"
)

// Name is the definition name manifests and configurations refer to.
const Name = "banner"

// Config is the banner's configuration.
type Config struct {
	Title    string  `cty:"title"`
	Subtitle *string `cty:"subtitle"`
}

// Module implements the featureapp.Module interface for this package.
type Module struct{}

// Register registers the banner definition with the catalog.
func (m *Module) Register(c *featureapp.Catalog) {
	c.Register(&featureapp.Definition{
		Name:   Name,
		Create: create,
	})
}

func create(env *featureapp.Env) (featureapp.FeatureApp, error) {
	var cfg Config
	if err := env.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Title == "" {
		return nil, errors.New("banner: title is required")
	}
	env.Logger.Debug("Banner created.", "title", cfg.Title)
	return &banner{id: env.FeatureAppID, cfg: cfg}, nil
}

type banner struct {
	id  string
	cfg Config
}

// Render implements featureapp.FeatureApp.
func (b *banner) Render(rc *render.Context) (string, error) {
	children := []render.Node{render.El("h1", render.Text(b.cfg.Title))}
	if b.cfg.Subtitle != nil {
		children = append(children, render.El("p", render.Text(*b.cfg.Subtitle)))
	}
	return (&render.Element{
		Tag:      "header",
		Attrs:    map[string]string{"class": "banner", "data-feature-app": b.id},
		Children: children,
	}).Render(rc)
}
