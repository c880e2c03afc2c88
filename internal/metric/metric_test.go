package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/loader"
	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{err: nil, want: "ok"},
		{err: &registry.UnsatisfiedDependencyError{ID: "a"}, want: "unsatisfied_dependency"},
		{err: &registry.CircularDependencyError{Chain: []string{"a", "a"}}, want: "circular_dependency"},
		{err: fmt.Errorf("wrapped: %w", &registry.UnsatisfiedExternalError{Name: "react"}), want: "unsatisfied_external"},
		{err: &asyncssr.ConvergenceTimeoutError{Attempts: 3}, want: "convergence_timeout"},
		{err: &asyncssr.RenderTimeoutError{Timeout: time.Second}, want: "timeout"},
		{err: &asyncssr.RenderFailure{Attempt: 1, Err: &loader.ModuleLoadError{ModuleID: "m", Err: errors.New("x")}}, want: "render_failure"},
		{err: &loader.ModuleLoadError{ModuleID: "m", Err: errors.New("x")}, want: "module_load"},
		{err: context.Canceled, want: "canceled"},
		{err: errors.New("other"), want: "error"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Outcome(tc.err))
		})
	}
}

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRender(2, 10*time.Millisecond, nil)
	m.ObserveRender(1, time.Millisecond, errors.New("boom"))
	m.ObserveModuleLoad("m", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.moduleLoads.WithLabelValues("ok")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	engine := gin.New()
	engine.Use(m.Middleware())
	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/health", "/health", "/nope"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "featurehub_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
