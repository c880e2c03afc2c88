package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) func(*Environment) (any, error) {
	return func(*Environment) (any, error) { return v, nil }
}

func TestRegister_SortsVersionsHighestFirst(t *testing.T) {
	r := New()
	err := r.Register(context.Background(),
		&Definition{ID: "svcA", Version: "1.0.0", Create: constant("a1")},
		&Definition{ID: "svcA", Version: "2.0.0", Create: constant("a2")},
		&Definition{ID: "svcA", Version: "1.5.0", Create: constant("a15")},
		&Definition{ID: "svcB", Version: "0.1.0", Create: constant("b")},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"2.0.0", "1.5.0", "1.0.0"}, r.Versions("svcA"))
	assert.Equal(t, []string{"svcA", "svcB"}, r.IDs())
	assert.Empty(t, r.Versions("unknown"))
}

func TestRegister_DuplicateIsSkipped(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, &Definition{ID: "svc", Version: "1.0.0", Create: constant("first")}))
	require.NoError(t, r.Register(ctx, &Definition{ID: "svc", Version: "1.0.0", Create: constant("second")}))

	assert.Equal(t, []string{"1.0.0"}, r.Versions("svc"))

	scope, err := r.CreateConsumerScope(ctx, "consumer", Declaration{Dependencies: Dependencies{"svc": "^1.0.0"}})
	require.NoError(t, err)
	v, err := scope.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestRegister_InvalidDefinitions(t *testing.T) {
	r := New()
	err := r.Register(context.Background(),
		nil,
		&Definition{Version: "1.0.0", Create: constant(nil)},
		&Definition{ID: "noFactory", Version: "1.0.0"},
		&Definition{ID: "badVersion", Version: "one", Create: constant(nil)},
		&Definition{ID: "badRange", Version: "1.0.0", Dependencies: Dependencies{"x": "not a range"}, Create: constant(nil)},
		&Definition{ID: "good", Version: "1.0.0", Create: constant(nil)},
	)
	require.Error(t, err)

	var invalid *InvalidDefinitionError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "definition is nil")
	assert.Contains(t, err.Error(), "id is empty")
	assert.Contains(t, err.Error(), "factory is nil")
	assert.Contains(t, err.Error(), "not a semantic version")
	assert.Contains(t, err.Error(), `dependency "x" has an invalid range`)

	assert.Equal(t, []string{"good"}, r.IDs())
}

func TestSelectVersion(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(context.Background(),
		&Definition{ID: "svcA", Version: "1.0.0", Create: constant(nil)},
		&Definition{ID: "svcA", Version: "1.2.0", Create: constant(nil)},
		&Definition{ID: "svcA", Version: "2.0.0", Create: constant(nil)},
	))
	entries := r.entries["svcA"]

	testCases := []struct {
		rng  string
		want string
	}{
		{rng: "^1.0.0", want: "1.2.0"},
		{rng: "~1.0.0", want: "1.0.0"},
		{rng: "^2.0.0", want: "2.0.0"},
		{rng: ">=1.0.0", want: "2.0.0"},
		{rng: "^3.0.0", want: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.rng, func(t *testing.T) {
			c, err := semver.NewConstraint(tc.rng)
			require.NoError(t, err)
			got := selectVersion(entries, c)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.version.String())
		})
	}
}

func TestExternalsValidator(t *testing.T) {
	v, err := NewExternalsValidator(Externals{"react": "16.14.0", "lit": "3.1.0"})
	require.NoError(t, err)

	t.Run("satisfied", func(t *testing.T) {
		assert.NoError(t, v.Validate(Externals{"react": "^16.0.0", "lit": "~3.1.0"}))
		assert.NoError(t, v.Validate(nil))
	})

	t.Run("version mismatch", func(t *testing.T) {
		err := v.Validate(Externals{"react": "^17.0.0"})
		var ext *UnsatisfiedExternalError
		require.ErrorAs(t, err, &ext)
		assert.Equal(t, "react", ext.Name)
		assert.Equal(t, "16.14.0", ext.Provided)
	})

	t.Run("not provided", func(t *testing.T) {
		err := v.Validate(Externals{"vue": "^3.0.0"})
		var ext *UnsatisfiedExternalError
		require.ErrorAs(t, err, &ext)
		assert.Empty(t, ext.Provided)
		assert.Contains(t, err.Error(), "not provided")
	})

	t.Run("nil validator provides nothing", func(t *testing.T) {
		var none *ExternalsValidator
		assert.NoError(t, none.Validate(nil))
		assert.Error(t, none.Validate(Externals{"react": "^16.0.0"}))
	})

	t.Run("invalid provided version", func(t *testing.T) {
		_, err := NewExternalsValidator(Externals{"react": "latest"})
		assert.Error(t, err)
	})
}

func TestSharedInstance_FailureNotCached(t *testing.T) {
	s := &sharedInstance{}
	calls := 0
	_, err := s.get(func() (any, error) {
		calls++
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	v, err := s.get(func() (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	v, err = s.get(func() (any, error) {
		calls++
		return "again", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}
