package asyncssr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elbkind/feature-hub/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// State is the position of a Manager in its convergence loop.
type State int32

const (
	// Idle indicates no attempt has started yet.
	Idle State = iota
	// Rendering indicates the render function is executing.
	Rendering
	// AwaitingPending indicates the manager is waiting for the tokens of the
	// last attempt to settle.
	AwaitingPending
	// Converged indicates an attempt finished without registering new work.
	Converged
	// Failed indicates the loop ended with an error.
	Failed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case AwaitingPending:
		return "awaiting-pending"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures a Manager.
type Options struct {
	// MaxAttempts caps the number of render attempts. Zero means unbounded.
	MaxAttempts int
	// Timeout bounds the whole convergence loop. Zero means no timeout.
	Timeout time.Duration
}

// Manager coordinates one render invocation. It is not reusable across
// invocations, but Register and Go may be called from any goroutine.
type Manager struct {
	opts Options

	state    atomic.Int32
	attempts atomic.Int32
	running  atomic.Bool

	mu      sync.Mutex
	pending []*Pending
	workCtx context.Context
}

// New creates a Manager.
func New(opts Options) *Manager {
	return &Manager{opts: opts}
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Attempts returns the number of render attempts started so far.
func (m *Manager) Attempts() int {
	return int(m.attempts.Load())
}

// Register adds a token to the set awaited after the current attempt.
func (m *Manager) Register(p *Pending) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, p)
	m.mu.Unlock()
}

// Go runs fn on a new goroutine and registers its outcome as pending work.
// The context passed to fn is cancelled when the convergence loop returns.
func (m *Manager) Go(fn func(ctx context.Context) (any, error)) *Pending {
	p, settle := NewPending()

	m.mu.Lock()
	ctx := m.workCtx
	m.pending = append(m.pending, p)
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		v, err := fn(ctx)
		settle(v, err)
	}()
	return p
}

// take removes and returns every token registered since the last call.
func (m *Manager) take() []*Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := m.pending
	m.pending = nil
	return tokens
}

// RenderUntilCompleted calls render until an attempt registers no pending
// work and returns the markup of that attempt. Markup of earlier attempts is
// discarded. A synchronous error from render aborts the loop. The context
// passed to render carries the loop's timeout and is cancelled when the loop
// returns.
func (m *Manager) RenderUntilCompleted(ctx context.Context, render func(ctx context.Context, attempt int) (string, error)) (string, error) {
	if !m.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRendering
	}
	defer m.running.Store(false)

	logger := ctxlog.FromContext(ctx)

	var cancel context.CancelFunc
	if m.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, m.opts.Timeout, &RenderTimeoutError{Timeout: m.opts.Timeout})
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	m.mu.Lock()
	m.workCtx = ctx
	m.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			m.setState(Failed)
			return "", context.Cause(ctx)
		}

		m.setState(Rendering)
		m.attempts.Store(int32(attempt))
		logger.Debug("Render attempt started.", "attempt", attempt)

		markup, err := render(ctx, attempt)
		if err != nil {
			m.setState(Failed)
			return "", fmt.Errorf("render attempt %d: %w", attempt, err)
		}

		tokens := m.take()
		if len(tokens) == 0 {
			m.setState(Converged)
			logger.Debug("Render converged.", "attempts", attempt)
			return markup, nil
		}

		if m.opts.MaxAttempts > 0 && attempt >= m.opts.MaxAttempts {
			m.setState(Failed)
			if err := settledRejection(tokens); err != nil {
				return "", &RenderFailure{Attempt: attempt, Err: err}
			}
			logger.Warn("Render did not converge.", "attempts", attempt, "pending", len(tokens))
			return "", &ConvergenceTimeoutError{Attempts: attempt}
		}

		m.setState(AwaitingPending)
		logger.Debug("Awaiting pending work.", "attempt", attempt, "pending", len(tokens))
		if err := m.await(ctx, attempt, tokens); err != nil {
			m.setState(Failed)
			return "", err
		}
	}
}

// settledRejection returns the error of the first token already rejected.
func settledRejection(tokens []*Pending) error {
	for _, p := range tokens {
		if !p.Settled() {
			continue
		}
		if _, err := p.Result(); err != nil {
			return err
		}
	}
	return nil
}

// rejection marks an error that came from a token rather than from ctx.
type rejection struct {
	err error
}

func (r *rejection) Error() string { return r.err.Error() }

// await waits for every token concurrently. It returns a *RenderFailure for
// the first rejection observed, or the cause of ctx if it ends first.
func (m *Manager) await(ctx context.Context, attempt int, tokens []*Pending) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range tokens {
		g.Go(func() error {
			select {
			case <-p.Done():
				if _, err := p.Result(); err != nil {
					return &rejection{err: err}
				}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	if err == nil {
		return nil
	}
	var rej *rejection
	if errors.As(err, &rej) {
		return &RenderFailure{Attempt: attempt, Err: rej.err}
	}
	return context.Cause(ctx)
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}
