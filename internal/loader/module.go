package loader

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Manifest describes a remote module.
type Manifest struct {
	// Name is the catalog name of the feature app definition.
	Name string `json:"name"`
	// Version is informational and ends up in logs.
	Version string `json:"version,omitempty"`
	// Externals maps each external the module needs to a version range.
	Externals map[string]string `json:"externals,omitempty"`
}

// Module is a loaded remote module.
type Module struct {
	ID         string
	ShareScope string
	Manifest   Manifest
}

// DecodeManifest parses a module manifest.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Name == "" {
		return Manifest{}, errors.New("manifest has no name")
	}
	return m, nil
}
