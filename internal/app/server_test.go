package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandler_Endpoints(t *testing.T) {
	a, _, _ := setupAppTest(t, map[string]string{
		"page.hcl":           pageHCL,
		"modules/promo.json": promoManifest,
	}, "page.hcl", nil)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	status, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK\n", body)

	status, body = get(t, srv, "/render")
	require.Equal(t, http.StatusOK, status, body)
	var res host.Result
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Contains(t, res.Markup, "<h1>Welcome</h1>")

	status, body = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `featurehub_render_invocations_total{outcome="ok"} 1`)
	assert.Contains(t, body, `featurehub_module_loads_total{outcome="ok"} 1`)
	assert.Contains(t, body, `featurehub_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestHandler_RenderFailure(t *testing.T) {
	a, _, logs := setupAppTest(t, map[string]string{
		"page.hcl": `feature_app "broken" { server_src = "modules/missing.json" }`,
	}, "page.hcl", nil)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	status, body := get(t, srv, "/render")
	assert.Equal(t, http.StatusBadGateway, status)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "render_failure", payload["outcome"])
	assert.Contains(t, payload["error"], "modules/missing.json")
	assert.Contains(t, logs.String(), "status=502")
}

func TestRenderStatus(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, renderStatus(&asyncssr.RenderTimeoutError{Timeout: time.Second}))
	assert.Equal(t, http.StatusGatewayTimeout, renderStatus(&asyncssr.ConvergenceTimeoutError{Attempts: 3}))
	assert.Equal(t, http.StatusBadGateway, renderStatus(&asyncssr.RenderFailure{Attempt: 1, Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, renderStatus(errors.New("x")))
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	a, _, logs := setupAppTest(t, map[string]string{"page.hcl": `integrator {}`}, "page.hcl", nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serveListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, logs.String(), "HTTP server shut down gracefully.")
}
