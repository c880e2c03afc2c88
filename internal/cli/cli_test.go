package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/elbkind/feature-hub/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		shouldExit bool
		wantErr    string
	}{
		{
			name: "defaults",
			args: []string{"page.hcl"},
			want: &app.Config{
				ConfigPaths:  []string{"page.hcl"},
				LogFormat:    "json",
				LogLevel:     "info",
				FetchTimeout: 10 * time.Second,
			},
		},
		{
			name: "all flags",
			args: []string{
				"-format", "YAML", "-port", "8080", "-log-format", "text", "-log-level", "DEBUG",
				"-workers", "3", "-fetch-timeout", "2s", "-preload", "-insecure-skip-verify", "a.yaml", "b.yaml",
			},
			want: &app.Config{
				ConfigPaths:        []string{"a.yaml", "b.yaml"},
				Format:             "yaml",
				LogFormat:          "text",
				LogLevel:           "debug",
				Port:               8080,
				WorkerCount:        3,
				FetchTimeout:       2 * time.Second,
				Preload:            true,
				InsecureSkipVerify: true,
			},
		},
		{name: "help", args: []string{"-h"}, shouldExit: true},
		{name: "no path", args: nil, shouldExit: true},
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "flag provided but not defined"},
		{name: "bad log format", args: []string{"-log-format", "xml", "p.hcl"}, wantErr: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "trace", "p.hcl"}, wantErr: "invalid log-level"},
		{name: "negative workers", args: []string{"-workers", "-1", "p.hcl"}, wantErr: "invalid workers"},
		{name: "bad format", args: []string{"-format", "toml", "p.hcl"}, wantErr: `unknown config format "toml"`},
		{name: "bad port", args: []string{"-port", "99999", "p.hcl"}, wantErr: "invalid port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cfg, shouldExit, err := Parse(tc.args, out)

			if tc.wantErr != "" {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, 2, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shouldExit, shouldExit)
			if tc.shouldExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			assert.Equal(t, tc.want, cfg)
		})
	}
}
