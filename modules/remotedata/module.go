// Package remotedata provides a feature app that fetches JSON while the page
// renders. The fetch starts on the first render attempt as pending work; the
// data is rendered on the next attempt and handed to the client as serialized
// state.
package remotedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/featureapp"
	"github.com/elbkind/feature-hub/internal/harvest"
	"github.com/elbkind/feature-hub/internal/httpclient"
	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/elbkind/feature-hub/internal/render"
)

// Name is the definition name manifests and configurations refer to.
const Name = "remote-data"

// Config is the feature app's configuration.
type Config struct {
	URL   string  `cty:"url"`
	Title *string `cty:"title"`
}

// Module implements the featureapp.Module interface for this package.
type Module struct{}

// Register registers the remote-data definition with the catalog.
func (m *Module) Register(c *featureapp.Catalog) {
	c.Register(&featureapp.Definition{
		Name: Name,
		Dependencies: registry.Dependencies{
			harvest.StatesID: "^1.0.0",
			httpclient.ID:    "^1.0.0",
		},
		Create: create,
	})
}

func create(env *featureapp.Env) (featureapp.FeatureApp, error) {
	var cfg Config
	if err := env.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("remote-data: url is required")
	}

	states, err := registry.Get[*harvest.ConsumerStates](env.Context, env.Services, harvest.StatesID)
	if err != nil {
		return nil, err
	}
	client, err := registry.Get[*httpclient.Client](env.Context, env.Services, httpclient.ID)
	if err != nil {
		return nil, err
	}

	app := &remoteData{id: env.FeatureAppID, cfg: cfg, client: client}
	states.Register(app.state)
	return app, nil
}

type remoteData struct {
	id     string
	cfg    Config
	client *httpclient.Client

	mu    sync.Mutex
	fetch *asyncssr.Pending
}

// Render implements featureapp.FeatureApp.
func (r *remoteData) Render(rc *render.Context) (string, error) {
	r.mu.Lock()
	if r.fetch == nil {
		rc.Logger().Debug("Fetching remote data.", "url", r.cfg.URL)
		r.fetch = rc.Schedule(r.get)
		r.mu.Unlock()
		return "", nil
	}
	fetch := r.fetch
	r.mu.Unlock()

	if !fetch.Settled() {
		rc.Register(fetch)
		return "", nil
	}
	data, err := fetch.Result()
	if err != nil {
		return "", err
	}

	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting data of %q: %w", r.id, err)
	}
	var children []render.Node
	if r.cfg.Title != nil {
		children = append(children, render.El("h2", render.Text(*r.cfg.Title)))
	}
	children = append(children, render.El("pre", render.Text(pretty)))
	return (&render.Element{
		Tag:      "section",
		Attrs:    map[string]string{"class": "remote-data", "data-feature-app": r.id},
		Children: children,
	}).Render(rc)
}

func (r *remoteData) get(ctx context.Context) (any, error) {
	var data any
	if err := r.client.GetJSON(ctx, r.cfg.URL, &data); err != nil {
		return nil, fmt.Errorf("remote-data %q: %w", r.id, err)
	}
	return data, nil
}

// state is the serializer registered with the state manager. It yields the
// fetched data, or nil while nothing has been fetched.
func (r *remoteData) state() (any, error) {
	r.mu.Lock()
	fetch := r.fetch
	r.mu.Unlock()
	if fetch == nil || !fetch.Settled() {
		return nil, nil
	}
	data, err := fetch.Result()
	if err != nil {
		return nil, nil
	}
	return data, nil
}
