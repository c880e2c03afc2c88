// Package render defines the context object threaded through a component tree
// during one render attempt, and a minimal component tree that renders to a
// markup string.
package render

import (
	"context"
	"log/slog"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/harvest"
)

// Scheduler accepts asynchronous work registered during rendering.
type Scheduler interface {
	Register(p *asyncssr.Pending)
	Go(fn func(ctx context.Context) (any, error)) *asyncssr.Pending
}

// StateRecorder stores a fragment's state for the client.
type StateRecorder interface {
	RecordState(fragmentID string, payload any)
}

// Options holds the collaborators of a Context.
type Options struct {
	Attempt       int
	Scheduler     Scheduler
	States        StateRecorder
	Stylesheets   *harvest.Stylesheets
	HydrationURLs *harvest.HydrationURLs
}

// Context is what fragments see while they render. It is created for every
// attempt; everything recorded through it accumulates across attempts.
type Context struct {
	ctx    context.Context
	logger *slog.Logger
	opts   Options
}

// NewContext creates a Context for one attempt. The logger is taken from ctx.
func NewContext(ctx context.Context, opts Options) *Context {
	return &Context{
		ctx:    ctx,
		logger: ctxlog.FromContext(ctx).With("attempt", opts.Attempt),
		opts:   opts,
	}
}

// With returns a copy whose logger carries the given attributes.
func (rc *Context) With(args ...any) *Context {
	c := *rc
	c.logger = rc.logger.With(args...)
	return &c
}

// Context returns the context of the render loop. It is cancelled when the
// loop times out or returns.
func (rc *Context) Context() context.Context {
	return rc.ctx
}

// Logger returns the attempt's logger.
func (rc *Context) Logger() *slog.Logger {
	return rc.logger
}

// Attempt returns the 1-based number of the current render attempt.
func (rc *Context) Attempt() int {
	return rc.opts.Attempt
}

// Schedule starts fn on its own goroutine and registers it as pending work.
func (rc *Context) Schedule(fn func(ctx context.Context) (any, error)) *asyncssr.Pending {
	if rc.opts.Scheduler == nil {
		p, settle := asyncssr.NewPending()
		go func() {
			settle(fn(rc.ctx))
		}()
		return p
	}
	return rc.opts.Scheduler.Go(fn)
}

// Register registers a token the render must wait for.
func (rc *Context) Register(p *asyncssr.Pending) {
	if rc.opts.Scheduler != nil {
		rc.opts.Scheduler.Register(p)
	}
}

// RecordState stores payload as the client state of fragmentID.
func (rc *Context) RecordState(fragmentID string, payload any) {
	if rc.opts.States != nil {
		rc.opts.States.RecordState(fragmentID, payload)
	}
}

// AddStylesheets records stylesheets the page needs.
func (rc *Context) AddStylesheets(list ...harvest.Stylesheet) {
	if rc.opts.Stylesheets != nil {
		rc.opts.Stylesheets.Record(list...)
	}
}

// AddHydrationURL records the URL of module code the client needs.
func (rc *Context) AddHydrationURL(url string) {
	if rc.opts.HydrationURLs != nil {
		rc.opts.HydrationURLs.Record(url)
	}
}
