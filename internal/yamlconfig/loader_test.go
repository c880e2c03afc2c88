package yamlconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elbkind/feature-hub/internal/hcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const integratorYAML = `
integrator:
  consumer_id: shop
  share_scope: shop-scope
  max_attempts: 10
  timeout: 5s
  workers: 2
  externals:
    react: 16.14.0
  dependencies:
    "s2:http-client": ^1.0.0
feature_apps:
  - id: app:banner
    src: https://cdn.example.com/banner.js
    server_src: https://cdn.example.com/banner.json
    stylesheets:
      - href: https://cdn.example.com/banner.css
      - href: https://cdn.example.com/print.css
        media: print
    config:
      title: Hello
      count: 3
  - id: app:local
    definition: banner
`

const integratorHCL = `
integrator {
  consumer_id  = "shop"
  share_scope  = "shop-scope"
  max_attempts = 10
  timeout      = "5s"
  workers      = 2
  externals    = { react = "16.14.0" }
  dependencies = { "s2:http-client" = "^1.0.0" }
}

feature_app "app:banner" {
  src        = "https://cdn.example.com/banner.js"
  server_src = "https://cdn.example.com/banner.json"
  config     = { title = "Hello", count = 3 }

  stylesheet {
    href = "https://cdn.example.com/banner.css"
  }
  stylesheet {
    href  = "https://cdn.example.com/print.css"
    media = "print"
  }
}

feature_app "app:local" {
  definition = "banner"
}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "integrator.yaml"), []byte(integratorYAML), 0o600))

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "shop", model.Integrator.ConsumerID)
	assert.Equal(t, 5*time.Second, model.Integrator.Timeout)
	assert.Equal(t, map[string]string{"s2:http-client": "^1.0.0"}, model.Integrator.Dependencies)
	require.Len(t, model.FeatureApps, 2)
	assert.Equal(t, cty.StringVal("Hello"), model.FeatureApps[0].Config.GetAttr("title"))
	assert.True(t, model.FeatureApps[1].Config.IsNull())
}

func TestParity(t *testing.T) {
	fromYAML, err := NewLoader().Parse([]byte(integratorYAML))
	require.NoError(t, err)
	fromHCL, err := hcl.NewLoader().Parse("integrator.hcl", []byte(integratorHCL))
	require.NoError(t, err)

	assert.Equal(t, fromHCL.Integrator, fromYAML.Integrator)
	require.Len(t, fromYAML.FeatureApps, len(fromHCL.FeatureApps))
	for i := range fromHCL.FeatureApps {
		h, y := fromHCL.FeatureApps[i], fromYAML.FeatureApps[i]
		assert.Equal(t, h.ID, y.ID)
		assert.Equal(t, h.Src, y.Src)
		assert.Equal(t, h.ServerSrc, y.ServerSrc)
		assert.Equal(t, h.Definition, y.Definition)
		assert.Equal(t, h.Stylesheets, y.Stylesheets)
		if h.Config.IsNull() {
			assert.True(t, y.Config.IsNull())
			continue
		}
		assert.True(t, h.Config.Equals(y.Config).True(), "config of %s differs: %#v vs %#v", h.ID, h.Config, y.Config)
	}
}

func TestParity_UnknownBlock(t *testing.T) {
	_, yamlErr := NewLoader().Parse([]byte("integrater:\n  max_attempts: 3\nfeature_apps:\n  - id: a\n    definition: banner\n"))
	_, hclErr := hcl.NewLoader().Parse("typo.hcl", []byte("integrater {\n  max_attempts = 3\n}\nfeature_app \"a\" {\n  definition = \"banner\"\n}\n"))

	assert.ErrorContains(t, yamlErr, "integrater")
	assert.ErrorContains(t, hclErr, "Unsupported block type")
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "unknown field", src: "integrator:\n  bogus: 1\n", wantErr: "failed to decode YAML"},
		{name: "bad timeout", src: "integrator:\n  timeout: soon\n", wantErr: "invalid timeout"},
		{name: "missing source", src: "feature_apps:\n  - id: x\n", wantErr: "needs src"},
		{name: "null entry", src: "feature_apps:\n  -\n  - id: a\n    definition: banner\n", wantErr: "feature app #1: empty entry"},
		{name: "misspelled block", src: "integrater:\n  max_attempts: 3\n", wantErr: "failed to decode YAML"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Parse([]byte(tc.src))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	model, err := NewLoader().Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "integrator", model.Integrator.ConsumerID)
}
