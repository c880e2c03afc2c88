package registry

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Externals maps an external (a library the host shares with fragments, such
// as a UI runtime) to a version or a version range.
type Externals map[string]string

// ExternalsValidator checks consumers' required externals against the
// versions provided by the host.
type ExternalsValidator struct {
	provided map[string]*semver.Version
}

// NewExternalsValidator parses the host-provided external versions. Provided
// versions must be exact semantic versions.
func NewExternalsValidator(provided Externals) (*ExternalsValidator, error) {
	v := &ExternalsValidator{provided: make(map[string]*semver.Version, len(provided))}
	for name, version := range provided {
		parsed, err := semver.NewVersion(version)
		if err != nil {
			return nil, fmt.Errorf("provided external %q has an invalid version %q: %w", name, version, err)
		}
		v.provided[name] = parsed
	}
	return v, nil
}

// Validate returns an *UnsatisfiedExternalError for the first required
// external, in name order, that the host does not provide in a matching
// version. A nil validator provides nothing.
func (v *ExternalsValidator) Validate(required Externals) error {
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rng := required[name]
		c, err := semver.NewConstraint(rng)
		if err != nil {
			return &UnsatisfiedExternalError{Name: name, Range: rng, Err: err}
		}
		var provided *semver.Version
		if v != nil {
			provided = v.provided[name]
		}
		if provided == nil {
			return &UnsatisfiedExternalError{Name: name, Range: rng}
		}
		if !c.Check(provided) {
			return &UnsatisfiedExternalError{Name: name, Range: rng, Provided: provided.String()}
		}
	}
	return nil
}
