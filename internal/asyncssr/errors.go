package asyncssr

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRendering is returned when RenderUntilCompleted is called on a
// Manager that is already running a convergence loop.
var ErrAlreadyRendering = errors.New("asyncssr: render already in progress")

// RenderFailure reports the first pending token that rejected. The markup of
// every attempt is discarded.
type RenderFailure struct {
	Attempt int
	Err     error
}

// Error implements the error interface.
func (e *RenderFailure) Error() string {
	return fmt.Sprintf("render failed: pending work registered in attempt %d was rejected: %v", e.Attempt, e.Err)
}

// Unwrap returns the rejection.
func (e *RenderFailure) Unwrap() error {
	return e.Err
}

// ConvergenceTimeoutError is returned when the render function still
// registers pending work after the configured maximum number of attempts.
type ConvergenceTimeoutError struct {
	Attempts int
}

// Error implements the error interface.
func (e *ConvergenceTimeoutError) Error() string {
	return fmt.Sprintf("render did not converge after %d attempts", e.Attempts)
}

// RenderTimeoutError is returned when the convergence loop as a whole takes
// longer than the configured timeout.
type RenderTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *RenderTimeoutError) Error() string {
	return fmt.Sprintf("render did not complete within %s", e.Timeout)
}
