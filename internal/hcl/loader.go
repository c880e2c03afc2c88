package hcl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/elbkind/feature-hub/internal/config"
	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/elbkind/feature-hub/internal/fsutil"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is used to decode the top-level blocks of any file.
type fileRoot struct {
	Integrator  *integratorBlock   `hcl:"integrator,block"`
	FeatureApps []*featureAppBlock `hcl:"feature_app,block"`
}

type integratorBlock struct {
	ConsumerID           string            `hcl:"consumer_id,optional"`
	ShareScope           string            `hcl:"share_scope,optional"`
	MaxAttempts          int               `hcl:"max_attempts,optional"`
	Timeout              string            `hcl:"timeout,optional"`
	Workers              int               `hcl:"workers,optional"`
	Externals            map[string]string `hcl:"externals,optional"`
	Dependencies         map[string]string `hcl:"dependencies,optional"`
	OptionalDependencies map[string]string `hcl:"optional_dependencies,optional"`
}

type featureAppBlock struct {
	ID          string             `hcl:"id,label"`
	Src         string             `hcl:"src,optional"`
	ServerSrc   string             `hcl:"server_src,optional"`
	Definition  string             `hcl:"definition,optional"`
	Config      cty.Value          `hcl:"config,optional"`
	Stylesheets []*stylesheetBlock `hcl:"stylesheet,block"`
}

type stylesheetBlock struct {
	Href  string `hcl:"href"`
	Media string `hcl:"media,optional"`
}

// Load parses every .hcl file found under paths and merges them into one
// model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read HCL file %s: %w", file, err)
		}
		fileModel, err := l.parse(parser, file, src)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(fileModel); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	model.Normalize()
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loader finished.", "feature_apps", len(model.FeatureApps))
	return model, nil
}

// Parse decodes a single HCL document. filename is used in diagnostics only.
func (l *Loader) Parse(filename string, src []byte) (*config.Model, error) {
	model, err := l.parse(hclparse.NewParser(), filename, src)
	if err != nil {
		return nil, err
	}
	model.Normalize()
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func (l *Loader) parse(parser *hclparse.Parser, filename string, src []byte) (*config.Model, error) {
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	model := &config.Model{}
	if root.Integrator != nil {
		in, err := translateIntegrator(root.Integrator)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		model.Integrator = in
	}
	for _, block := range root.FeatureApps {
		model.FeatureApps = append(model.FeatureApps, translateFeatureApp(block))
	}
	return model, nil
}

func translateIntegrator(b *integratorBlock) (*config.Integrator, error) {
	in := &config.Integrator{
		ConsumerID:           b.ConsumerID,
		ShareScope:           b.ShareScope,
		MaxAttempts:          b.MaxAttempts,
		Workers:              b.Workers,
		Externals:            b.Externals,
		Dependencies:         b.Dependencies,
		OptionalDependencies: b.OptionalDependencies,
	}
	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("integrator: invalid timeout %q: %w", b.Timeout, err)
		}
		in.Timeout = d
	}
	return in, nil
}

func translateFeatureApp(b *featureAppBlock) *config.FeatureApp {
	app := &config.FeatureApp{
		ID:         b.ID,
		Src:        b.Src,
		ServerSrc:  b.ServerSrc,
		Definition: b.Definition,
		Config:     b.Config,
	}
	for _, s := range b.Stylesheets {
		app.Stylesheets = append(app.Stylesheets, config.Stylesheet{Href: s.Href, Media: s.Media})
	}
	return app
}
