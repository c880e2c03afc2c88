package host

import (
	"context"
	"fmt"
	"time"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/config"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/featureapp"
	"github.com/elbkind/feature-hub/internal/harvest"
	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/elbkind/feature-hub/internal/render"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// orchestrationRange is the version range the host requires of the async SSR
// manager and the serialized state manager.
const orchestrationRange = "^1.0.0"

// Observer is notified after every render invocation.
type Observer func(attempts int, took time.Duration, err error)

// Option configures a Host.
type Option func(*Host)

// WithObserver sets the observer notified after every invocation.
func WithObserver(o Observer) Option {
	return func(h *Host) { h.observer = o }
}

// WithWorkers bounds how many modules are preloaded concurrently.
func WithWorkers(n int) Option {
	return func(h *Host) { h.workers = n }
}

// Host renders feature apps with services from one registry.
type Host struct {
	registry *registry.Registry
	loader   featureapp.ModuleLoader
	catalog  *featureapp.Catalog
	observer Observer
	workers  int
}

// New creates a Host. The registry must contain the async SSR manager and the
// serialized state manager definitions.
func New(reg *registry.Registry, l featureapp.ModuleLoader, catalog *featureapp.Catalog, opts ...Option) *Host {
	h := &Host{
		registry: reg,
		loader:   l,
		catalog:  catalog,
		workers:  config.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Options describes one page.
type Options struct {
	// ConsumerID identifies the integrator; it defaults to
	// config.DefaultConsumerID.
	ConsumerID string
	// Dependencies and OptionalDependencies are feature services the
	// integrator declares in addition to the orchestration services.
	Dependencies         registry.Dependencies
	OptionalDependencies registry.Dependencies
	FeatureApps          []*config.FeatureApp
	// Layout arranges the rendered feature apps. The default renders them one
	// after another.
	Layout func(apps []render.Node) render.Node
	// Preload fetches every module before the first render attempt.
	Preload bool
}

// Result is the outcome of one render invocation.
type Result struct {
	InvocationID string `json:"invocation_id"`
	Markup       string `json:"markup"`
	// SerializedStates maps fragment ids to their state.
	SerializedStates map[string]any `json:"serialized_states"`
	// EncodedStates is SerializedStates as the client reads it.
	EncodedStates string               `json:"encoded_states"`
	Stylesheets   []harvest.Stylesheet `json:"stylesheets"`
	HydrationURLs []string             `json:"hydration_urls"`
	Attempts      int                  `json:"attempts"`
}

// RenderOnce renders the page described by opts. Errors from composition or
// from the convergence loop are returned unchanged and no partial result is
// returned.
func (h *Host) RenderOnce(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	res, attempts, err := h.renderOnce(ctx, opts)
	if h.observer != nil {
		h.observer(attempts, time.Since(start), err)
	}
	return res, err
}

func (h *Host) renderOnce(ctx context.Context, opts Options) (*Result, int, error) {
	invocationID := uuid.NewString()
	ctx, logger := ctxlog.With(ctx, "invocation", invocationID)

	consumerID := opts.ConsumerID
	if consumerID == "" {
		consumerID = config.DefaultConsumerID
	}

	deps := registry.Dependencies{
		asyncssr.ID:      orchestrationRange,
		harvest.StatesID: orchestrationRange,
	}
	for id, rng := range opts.Dependencies {
		deps[id] = rng
	}
	scope, err := h.registry.CreateConsumerScope(ctx, consumerID, registry.Declaration{
		Dependencies:         deps,
		OptionalDependencies: opts.OptionalDependencies,
	})
	if err != nil {
		return nil, 0, err
	}

	manager, err := registry.Get[*asyncssr.Manager](ctx, scope, asyncssr.ID)
	if err != nil {
		return nil, 0, err
	}
	states, err := registry.Get[*harvest.ConsumerStates](ctx, scope, harvest.StatesID)
	if err != nil {
		return nil, 0, err
	}

	if opts.Preload {
		if err := h.preload(ctx, opts.FeatureApps); err != nil {
			return nil, 0, err
		}
	}

	apps := featureapp.NewManager(h.loader, h.catalog, scope)
	nodes, err := h.nodes(apps, opts.FeatureApps)
	if err != nil {
		return nil, 0, err
	}
	var root render.Node = render.Fragment(nodes)
	if opts.Layout != nil {
		root = opts.Layout(nodes)
	}

	stylesheets := harvest.NewStylesheets()
	hydrationURLs := harvest.NewHydrationURLs()

	logger.Info("Render started.", "consumer", consumerID, "feature_apps", len(nodes))
	markup, err := manager.RenderUntilCompleted(ctx, func(ctx context.Context, attempt int) (string, error) {
		rc := render.NewContext(ctx, render.Options{
			Attempt:       attempt,
			Scheduler:     manager,
			States:        states,
			Stylesheets:   stylesheets,
			HydrationURLs: hydrationURLs,
		})
		return root.Render(rc)
	})
	attempts := manager.Attempts()
	if err != nil {
		logger.Warn("Render failed.", "attempts", attempts, "error", err)
		return nil, attempts, err
	}

	collected, err := states.CollectAll()
	if err != nil {
		return nil, attempts, err
	}
	encoded, err := harvest.EncodeStates(collected)
	if err != nil {
		return nil, attempts, err
	}

	logger.Info("Render converged.", "attempts", attempts)
	return &Result{
		InvocationID:     invocationID,
		Markup:           markup,
		SerializedStates: collected,
		EncodedStates:    encoded,
		Stylesheets:      stylesheets.CollectAll(),
		HydrationURLs:    hydrationURLs.CollectAll(),
		Attempts:         attempts,
	}, attempts, nil
}

// preload fetches the modules of apps concurrently, at most h.workers at a
// time. Loaded modules are cached by the loader, so the first render attempt
// finds them ready.
func (h *Host) preload(ctx context.Context, apps []*config.FeatureApp) error {
	g, gctx := errgroup.WithContext(ctx)
	if h.workers > 0 {
		g.SetLimit(h.workers)
	}
	seen := make(map[string]bool)
	for _, app := range apps {
		id := app.ModuleID()
		if app.Definition != "" || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			_, err := h.loader.Load(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// nodes builds one node per feature app, in configuration order.
func (h *Host) nodes(apps *featureapp.Manager, configs []*config.FeatureApp) ([]render.Node, error) {
	nodes := make([]render.Node, 0, len(configs))
	for _, app := range configs {
		sheets := make([]harvest.Stylesheet, 0, len(app.Stylesheets))
		for _, s := range app.Stylesheets {
			sheets = append(sheets, harvest.Stylesheet{Href: s.Href, Media: s.Media})
		}

		if app.Definition == "" {
			nodes = append(nodes, &featureapp.LoaderNode{
				Manager:      apps,
				FeatureAppID: app.ID,
				ModuleID:     app.ModuleID(),
				HydrationURL: app.Src,
				Stylesheets:  sheets,
				Config:       app.Config,
			})
			continue
		}

		def, ok := h.catalog.Lookup(app.Definition)
		if !ok {
			return nil, fmt.Errorf("feature app %q: %w %q", app.ID, featureapp.ErrUnknownDefinition, app.Definition)
		}
		nodes = append(nodes, withAssets(app.Src, sheets, &featureapp.Node{
			Manager:      apps,
			FeatureAppID: app.ID,
			Definition:   def,
			Config:       app.Config,
		}))
	}
	return nodes, nil
}

// withAssets records the hydration URL and stylesheets of a compiled-in
// feature app before rendering it.
func withAssets(hydrationURL string, sheets []harvest.Stylesheet, n render.Node) render.Node {
	return render.NodeFunc(func(rc *render.Context) (string, error) {
		rc.AddHydrationURL(hydrationURL)
		rc.AddStylesheets(sheets...)
		return n.Render(rc)
	})
}
