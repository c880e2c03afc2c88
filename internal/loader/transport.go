package loader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Transport fetches the manifest of a module.
type Transport interface {
	Fetch(ctx context.Context, moduleID, shareScope string) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, moduleID, shareScope string) ([]byte, error)

// Fetch calls f.
func (f TransportFunc) Fetch(ctx context.Context, moduleID, shareScope string) ([]byte, error) {
	return f(ctx, moduleID, shareScope)
}

// StaticTransport serves manifests from memory.
type StaticTransport struct {
	mu        sync.RWMutex
	manifests map[string][]byte
}

// NewStaticTransport creates a StaticTransport serving manifests by module id.
func NewStaticTransport(manifests map[string][]byte) *StaticTransport {
	t := &StaticTransport{manifests: make(map[string][]byte, len(manifests))}
	for id, data := range manifests {
		t.manifests[id] = data
	}
	return t
}

// Set adds or replaces a manifest.
func (t *StaticTransport) Set(moduleID string, manifest []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manifests[moduleID] = manifest
}

// Fetch implements Transport.
func (t *StaticTransport) Fetch(_ context.Context, moduleID, _ string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, ok := t.manifests[moduleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	return data, nil
}

// FileTransport reads manifests from the local file system. Module ids are
// file:// URLs or paths, relative paths resolved against Dir.
type FileTransport struct {
	Dir string
}

// Fetch implements Transport.
func (t FileTransport) Fetch(_ context.Context, moduleID, _ string) ([]byte, error) {
	path := moduleID
	if strings.HasPrefix(moduleID, "file://") {
		u, err := url.Parse(moduleID)
		if err != nil {
			return nil, fmt.Errorf("parsing module URL: %w", err)
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) && t.Dir != "" {
		path = filepath.Join(t.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return data, nil
}

// MuxTransport dispatches on the scheme of the module URL. Ids without a
// scheme use the "file" entry.
type MuxTransport map[string]Transport

// Fetch implements Transport.
func (m MuxTransport) Fetch(ctx context.Context, moduleID, shareScope string) ([]byte, error) {
	scheme := "file"
	if u, err := url.Parse(moduleID); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}
	t, ok := m[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return t.Fetch(ctx, moduleID, shareScope)
}
