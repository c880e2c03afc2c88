// Package yamlconfig provides a YAML implementation of config.Loader. It
// accepts the same settings as the HCL loader:
//
//	integrator:
//	  consumer_id: integrator
//	  timeout: 5s
//	  externals:
//	    react: 16.14.0
//	feature_apps:
//	  - id: app:banner
//	    src: https://cdn.example.com/banner.js
//	    config:
//	      title: Hello
package yamlconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/elbkind/feature-hub/internal/config"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

type document struct {
	Integrator  *integrator   `yaml:"integrator"`
	FeatureApps []*featureApp `yaml:"feature_apps"`
}

type integrator struct {
	ConsumerID           string            `yaml:"consumer_id"`
	ShareScope           string            `yaml:"share_scope"`
	MaxAttempts          int               `yaml:"max_attempts"`
	Timeout              string            `yaml:"timeout"`
	Workers              int               `yaml:"workers"`
	Externals            map[string]string `yaml:"externals"`
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optional_dependencies"`
}

type featureApp struct {
	ID          string       `yaml:"id"`
	Src         string       `yaml:"src"`
	ServerSrc   string       `yaml:"server_src"`
	Definition  string       `yaml:"definition"`
	Stylesheets []stylesheet `yaml:"stylesheets"`
	Config      any          `yaml:"config"`
}

type stylesheet struct {
	Href  string `yaml:"href"`
	Media string `yaml:"media"`
}

// Load parses every .yaml and .yml file found under paths and merges them
// into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".yaml", ".yml")
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yaml files found in %v", paths)
	}

	model := &config.Model{}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", file, err)
		}
		fileModel, err := parse(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if err := model.Merge(fileModel); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	model.Normalize()
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("YAML loader finished.", "files", len(files), "feature_apps", len(model.FeatureApps))
	return model, nil
}

// Parse decodes a single YAML document.
func (l *Loader) Parse(src []byte) (*config.Model, error) {
	model, err := parse(src)
	if err != nil {
		return nil, err
	}
	model.Normalize()
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func parse(src []byte) (*config.Model, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	model := &config.Model{}
	if doc.Integrator != nil {
		in := &config.Integrator{
			ConsumerID:           doc.Integrator.ConsumerID,
			ShareScope:           doc.Integrator.ShareScope,
			MaxAttempts:          doc.Integrator.MaxAttempts,
			Workers:              doc.Integrator.Workers,
			Externals:            doc.Integrator.Externals,
			Dependencies:         doc.Integrator.Dependencies,
			OptionalDependencies: doc.Integrator.OptionalDependencies,
		}
		if doc.Integrator.Timeout != "" {
			d, err := time.ParseDuration(doc.Integrator.Timeout)
			if err != nil {
				return nil, fmt.Errorf("integrator: invalid timeout %q: %w", doc.Integrator.Timeout, err)
			}
			in.Timeout = d
		}
		model.Integrator = in
	}

	for i, fa := range doc.FeatureApps {
		if fa == nil {
			return nil, fmt.Errorf("feature app #%d: empty entry", i+1)
		}
		cfg, err := toCty(fa.Config)
		if err != nil {
			return nil, fmt.Errorf("feature app %q: config: %w", fa.ID, err)
		}
		app := &config.FeatureApp{
			ID:         fa.ID,
			Src:        fa.Src,
			ServerSrc:  fa.ServerSrc,
			Definition: fa.Definition,
			Config:     cfg,
		}
		for _, s := range fa.Stylesheets {
			app.Stylesheets = append(app.Stylesheets, config.Stylesheet{Href: s.Href, Media: s.Media})
		}
		model.FeatureApps = append(model.FeatureApps, app)
	}
	return model, nil
}

// toCty converts a decoded YAML value to cty by way of JSON.
func toCty(v any) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(data, ty)
}
