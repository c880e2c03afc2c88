package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/elbkind/feature-hub/internal/ctxlog"
	"golang.org/x/sync/singleflight"
)

// Observer is notified once per fetch with its outcome.
type Observer func(moduleID string, took time.Duration, err error)

// Option configures a Loader.
type Option func(*Loader)

// WithObserver sets the fetch observer.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		l.observer = o
	}
}

// Loader loads modules through a Transport. Successful loads are cached for
// the life of the Loader; concurrent loads of one id share a single fetch.
type Loader struct {
	transport Transport
	observer  Observer

	mu    sync.RWMutex
	scope string
	cache map[string]*Module

	group singleflight.Group
}

// New creates a Loader.
func New(transport Transport, opts ...Option) *Loader {
	l := &Loader{
		transport: transport,
		cache:     make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InitSharing initializes the share scope. Calling it again with the same
// name does nothing.
func (l *Loader) InitSharing(scopeName string) error {
	if scopeName == "" {
		return errors.New("loader: share scope name is empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.scope {
	case "":
		l.scope = scopeName
		return nil
	case scopeName:
		return nil
	default:
		return ErrShareScopeConflict
	}
}

// ShareScope returns the initialized share scope name.
func (l *Loader) ShareScope() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scope
}

// Load returns the module identified by moduleID, fetching it if it has not
// been loaded yet. Errors are *ModuleLoadError, except ErrSharingNotInitialized.
func (l *Loader) Load(ctx context.Context, moduleID string) (*Module, error) {
	l.mu.RLock()
	scope := l.scope
	cached := l.cache[moduleID]
	l.mu.RUnlock()

	if scope == "" {
		return nil, ErrSharingNotInitialized
	}
	if cached != nil {
		return cached, nil
	}

	// The shared fetch is not cancelled by any single caller.
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(moduleID, func() (any, error) {
		return l.fetch(fetchCtx, moduleID, scope)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Module), nil
	case <-ctx.Done():
		return nil, &ModuleLoadError{ModuleID: moduleID, Err: ctx.Err()}
	}
}

// Cached returns the module identified by moduleID if it has already been
// loaded.
func (l *Loader) Cached(moduleID string) (*Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.cache[moduleID]
	return m, ok
}

func (l *Loader) fetch(ctx context.Context, moduleID, scope string) (*Module, error) {
	logger := ctxlog.FromContext(ctx).With("module", moduleID, "share_scope", scope)
	logger.Debug("Fetching module.")
	start := time.Now()

	m, err := l.fetchAndDecode(ctx, moduleID, scope)
	if l.observer != nil {
		l.observer(moduleID, time.Since(start), err)
	}
	if err != nil {
		logger.Error("Module load failed.", "error", err)
		return nil, &ModuleLoadError{ModuleID: moduleID, Err: err}
	}

	l.mu.Lock()
	l.cache[moduleID] = m
	l.mu.Unlock()

	logger.Info("Module loaded.", "name", m.Manifest.Name, "version", m.Manifest.Version, "took", time.Since(start))
	return m, nil
}

func (l *Loader) fetchAndDecode(ctx context.Context, moduleID, scope string) (*Module, error) {
	if l.transport == nil {
		return nil, errors.New("no transport configured")
	}
	data, err := l.transport.Fetch(ctx, moduleID, scope)
	if err != nil {
		return nil, err
	}
	manifest, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}
	return &Module{ID: moduleID, ShareScope: scope, Manifest: manifest}, nil
}
