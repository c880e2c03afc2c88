package asyncssr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderUntilCompleted_NoPendingConvergesOnce(t *testing.T) {
	m := New(Options{})
	assert.Equal(t, Idle, m.State())

	calls := 0
	markup, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
		calls++
		return "<p>hello</p>", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", markup)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Attempts())
	assert.Equal(t, Converged, m.State())
}

func TestRenderUntilCompleted_SecondAttemptMarkupWins(t *testing.T) {
	m := New(Options{})

	markup, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
		if attempt == 1 {
			for i := 0; i < 3; i++ {
				m.Go(func(context.Context) (any, error) {
					time.Sleep(5 * time.Millisecond)
					return i, nil
				})
			}
		}
		return fmt.Sprintf("attempt-%d", attempt), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "attempt-2", markup)
	assert.Equal(t, 2, m.Attempts())
}

func TestRenderUntilCompleted_RejectionFails(t *testing.T) {
	m := New(Options{})
	boom := errors.New("boom")

	markup, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
		if attempt == 1 {
			m.Register(Resolved("ok"))
			m.Register(Rejected(boom))
		}
		return "partial", nil
	})

	assert.Empty(t, markup)
	var failure *RenderFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempt)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, m.State())
}

func TestRenderUntilCompleted_RejectionDoesNotWaitForSlowTokens(t *testing.T) {
	m := New(Options{})
	slow, _ := NewPending()

	done := make(chan error, 1)
	go func() {
		_, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
			m.Register(slow)
			m.Register(Rejected(errors.New("fast failure")))
			return "", nil
		})
		done <- err
	}()

	select {
	case err := <-done:
		var failure *RenderFailure
		assert.ErrorAs(t, err, &failure)
	case <-time.After(time.Second):
		t.Fatal("convergence loop waited for an unsettled token after a rejection")
	}
}

func TestRenderUntilCompleted_LaterAttemptRejection(t *testing.T) {
	m := New(Options{})

	_, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
		switch attempt {
		case 1:
			m.Register(Resolved(nil))
		case 2:
			m.Register(Rejected(errors.New("second")))
		}
		return "", nil
	})

	var failure *RenderFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, failure.Attempt)
}

func TestRenderUntilCompleted_RenderError(t *testing.T) {
	m := New(Options{})
	boom := errors.New("template exploded")

	_, err := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) {
		return "", boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "render attempt 1")
}

func TestRenderUntilCompleted_MaxAttempts(t *testing.T) {
	m := New(Options{MaxAttempts: 3})
	calls := 0

	_, err := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) {
		calls++
		m.Register(Resolved(nil))
		return "", nil
	})

	var timeout *ConvergenceTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, 3, calls)
}

func TestRenderUntilCompleted_RejectionOnLastAttempt(t *testing.T) {
	m := New(Options{MaxAttempts: 1})
	boom := errors.New("boom")

	_, err := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) {
		m.Register(Rejected(boom))
		return "", nil
	})

	var failure *RenderFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempt)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, m.State())
}

func TestRenderUntilCompleted_RenderContextCarriesTimeout(t *testing.T) {
	m := New(Options{Timeout: 20 * time.Millisecond})
	never, _ := NewPending()
	var renderCtx context.Context

	_, err := m.RenderUntilCompleted(context.Background(), func(ctx context.Context, _ int) (string, error) {
		renderCtx = ctx
		m.Register(never)
		return "", nil
	})

	var timeout *RenderTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.NotNil(t, renderCtx)
	assert.ErrorIs(t, renderCtx.Err(), context.DeadlineExceeded)
	assert.ErrorAs(t, context.Cause(renderCtx), &timeout)
}

func TestRenderUntilCompleted_UnboundedByDefault(t *testing.T) {
	m := New(Options{})

	markup, err := m.RenderUntilCompleted(context.Background(), func(_ context.Context, attempt int) (string, error) {
		if attempt < 50 {
			m.Register(Resolved(nil))
		}
		return fmt.Sprint(attempt), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "50", markup)
}

func TestRenderUntilCompleted_Timeout(t *testing.T) {
	m := New(Options{Timeout: 20 * time.Millisecond})
	never, _ := NewPending()

	_, err := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) {
		m.Register(never)
		return "", nil
	})

	var timeout *RenderTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 20*time.Millisecond, timeout.Timeout)
}

func TestRenderUntilCompleted_CallerCancellation(t *testing.T) {
	m := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	workCancelled := make(chan struct{})

	_, err := m.RenderUntilCompleted(ctx, func(context.Context, int) (string, error) {
		m.Go(func(workCtx context.Context) (any, error) {
			<-workCtx.Done()
			close(workCancelled)
			return nil, workCtx.Err()
		})
		cancel()
		return "", nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	select {
	case <-workCancelled:
	case <-time.After(time.Second):
		t.Fatal("work started with Go was not cancelled")
	}
}

func TestRenderUntilCompleted_NotReentrant(t *testing.T) {
	m := New(Options{})

	_, err := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) {
		_, innerErr := m.RenderUntilCompleted(context.Background(), func(context.Context, int) (string, error) { return "", nil })
		assert.ErrorIs(t, innerErr, ErrAlreadyRendering)
		return "", nil
	})
	require.NoError(t, err)
}

func TestPending(t *testing.T) {
	p, settle := NewPending()
	assert.False(t, p.Settled())

	v, err := p.Result()
	assert.Nil(t, v)
	assert.NoError(t, err)

	settle("first", nil)
	settle("second", errors.New("ignored"))

	assert.True(t, p.Settled())
	v, err = p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestPending_WaitCancelled(t *testing.T) {
	p, _ := NewPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-pending", AwaitingPending.String())
	assert.Equal(t, "State(42)", State(42).String())
}
