package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrSharingNotInitialized is returned by Load before InitSharing.
	ErrSharingNotInitialized = errors.New("loader: share scope not initialized")
	// ErrShareScopeConflict is returned when InitSharing is called again with
	// a different scope name.
	ErrShareScopeConflict = errors.New("loader: share scope already initialized with a different name")
	// ErrUnsupportedScheme is returned by MuxTransport for a URL scheme it has
	// no transport for.
	ErrUnsupportedScheme = errors.New("loader: unsupported module URL scheme")
	// ErrModuleNotFound is returned by StaticTransport for unknown ids.
	ErrModuleNotFound = errors.New("loader: module not found")
)

// ModuleLoadError reports a failed module load. Loads are not retried.
type ModuleLoadError struct {
	ModuleID string
	Err      error
}

// Error implements the error interface.
func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("loading module %q: %v", e.ModuleID, e.Err)
}

// Unwrap returns the transport or decoding failure.
func (e *ModuleLoadError) Unwrap() error {
	return e.Err
}
