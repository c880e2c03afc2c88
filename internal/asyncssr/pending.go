package asyncssr

import (
	"context"
	"sync"
)

// Pending is one in-flight asynchronous operation registered during a render
// attempt. It settles exactly once, with a value or an error.
type Pending struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// Settle resolves (err == nil) or rejects (err != nil) a Pending. Only the
// first call has any effect.
type Settle func(value any, err error)

// NewPending returns an unsettled token and the function that settles it.
func NewPending() (*Pending, Settle) {
	p := &Pending{done: make(chan struct{})}
	return p, p.settle
}

// Resolved returns an already settled token.
func Resolved(value any) *Pending {
	p, settle := NewPending()
	settle(value, nil)
	return p
}

// Rejected returns an already rejected token.
func Rejected(err error) *Pending {
	p, settle := NewPending()
	settle(nil, err)
	return p
}

func (p *Pending) settle(value any, err error) {
	p.once.Do(func() {
		p.value, p.err = value, err
		close(p.done)
	})
}

// Done is closed once the token has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the token has settled.
func (p *Pending) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. It must only be called after
// Done is closed; before that it returns nil values.
func (p *Pending) Result() (any, error) {
	if !p.Settled() {
		return nil, nil
	}
	return p.value, p.err
}

// Wait blocks until the token settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}
