package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"greeting":"hello"}`))
		case "/bad":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := New(time.Second)
	t.Cleanup(c.Close)

	t.Run("decodes", func(t *testing.T) {
		var got struct{ Greeting string }
		require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/ok", &got))
		assert.Equal(t, "hello", got.Greeting)
	})

	t.Run("rejects non-2xx", func(t *testing.T) {
		var got map[string]any
		err := c.GetJSON(context.Background(), srv.URL+"/missing", &got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 404")
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		var got map[string]any
		err := c.GetJSON(context.Background(), srv.URL+"/bad", &got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding response")
	})
}

func TestDefinition_ProcessWide(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	require.NoError(t, reg.Register(ctx, Definition(time.Second)))

	decl := registry.Declaration{Dependencies: registry.Dependencies{ID: "^1.0.0"}}
	a, err := reg.CreateConsumerScope(ctx, "a", decl)
	require.NoError(t, err)
	b, err := reg.CreateConsumerScope(ctx, "b", decl)
	require.NoError(t, err)

	ca, err := registry.Get[*Client](ctx, a, ID)
	require.NoError(t, err)
	cb, err := registry.Get[*Client](ctx, b, ID)
	require.NoError(t, err)
	assert.Same(t, ca, cb)
	assert.Equal(t, time.Second, ca.HTTP.Timeout)
}
