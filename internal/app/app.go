package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/config"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/featureapp"
	"github.com/elbkind/feature-hub/internal/harvest"
	"github.com/elbkind/feature-hub/internal/host"
	"github.com/elbkind/feature-hub/internal/httpclient"
	"github.com/elbkind/feature-hub/internal/loader"
	"github.com/elbkind/feature-hub/internal/metric"
	"github.com/elbkind/feature-hub/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	model    *config.Model
	registry *registry.Registry
	loader   *loader.Loader
	catalog  *featureapp.Catalog
	host     *host.Host
	metrics  *metric.Metrics

	httpTransport   *loader.HTTPTransport
	socketTransport *loader.SocketIOTransport
}

// NewApp is the constructor for the main application. It loads the
// configuration with cfgLoader and wires an isolated logger, registry, module
// loader, catalog and host. Without modules, the core modules are compiled in.
func NewApp(outW io.Writer, appConfig *Config, cfgLoader config.Loader, modules ...featureapp.Module) (*App, error) {
	logW := appConfig.LogOutput
	if logW == nil {
		logW = outW
	}
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := cfgLoader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	in := model.Integrator
	if appConfig.WorkerCount > 0 {
		in.Workers = appConfig.WorkerCount
	}
	logger.Debug("Configuration loaded and translated into unified model.", "feature_apps", len(model.FeatureApps))

	if len(modules) == 0 {
		modules = coreModules
	}
	catalog := featureapp.NewCatalog(modules...)
	for _, fa := range model.FeatureApps {
		if fa.Definition == "" {
			continue
		}
		if _, ok := catalog.Lookup(fa.Definition); !ok {
			return nil, fmt.Errorf("feature app %q: %w %q (compiled in: %v)", fa.ID, featureapp.ErrUnknownDefinition, fa.Definition, catalog.Names())
		}
	}
	logger.Debug("Feature app modules registered.", "definitions", catalog.Names())

	externals, err := registry.NewExternalsValidator(in.Externals)
	if err != nil {
		return nil, fmt.Errorf("integrator externals: %w", err)
	}
	reg := registry.New(registry.WithExternals(externals))
	err = reg.Register(ctx,
		asyncssr.Definition(asyncssr.Options{MaxAttempts: in.MaxAttempts, Timeout: in.Timeout}),
		harvest.StatesDefinition(),
		httpclient.Definition(appConfig.FetchTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("registering services: %w", err)
	}
	logger.Debug("Services registered.", "ids", reg.IDs())

	metrics := metric.New()
	httpTransport := loader.NewHTTPTransport(appConfig.FetchTimeout)
	socketTransport := &loader.SocketIOTransport{
		Timeout:            appConfig.FetchTimeout,
		InsecureSkipVerify: appConfig.InsecureSkipVerify,
	}
	l := loader.New(loader.MuxTransport{
		"file":  loader.FileTransport{Dir: appConfig.baseDir()},
		"http":  httpTransport,
		"https": httpTransport,
		"ws":    socketTransport,
		"wss":   socketTransport,
	}, loader.WithObserver(metrics.ObserveModuleLoad))
	if err := l.InitSharing(in.ShareScope); err != nil {
		return nil, err
	}

	h := host.New(reg, l, catalog,
		host.WithObserver(metrics.ObserveRender),
		host.WithWorkers(in.Workers),
	)

	return &App{
		outW:            outW,
		logger:          logger,
		config:          appConfig,
		model:           model,
		registry:        reg,
		loader:          l,
		catalog:         catalog,
		host:            h,
		metrics:         metrics,
		httpTransport:   httpTransport,
		socketTransport: socketTransport,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Metrics returns the application's metrics.
func (a *App) Metrics() *metric.Metrics {
	return a.metrics
}

// RenderOnce renders the configured page.
func (a *App) RenderOnce(ctx context.Context) (*host.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	in := a.model.Integrator
	return a.host.RenderOnce(ctx, host.Options{
		ConsumerID:           in.ConsumerID,
		Dependencies:         in.Dependencies,
		OptionalDependencies: in.OptionalDependencies,
		FeatureApps:          a.model.FeatureApps,
		Preload:              a.config.Preload,
	})
}

// Close releases idle connections of the module transports.
func (a *App) Close() {
	a.httpTransport.Close()
}
