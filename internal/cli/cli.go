package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elbkind/feature-hub/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("featurehub", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
featurehub - A server-side rendering host for micro-frontends.

Renders the configured feature apps once and prints the result as JSON, or
serves renders over HTTP when a port is given.

Usage:
  featurehub [options] CONFIG_PATH...

Arguments:
  CONFIG_PATH
    Path to a .hcl or .yaml file, or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	formatFlag := flagSet.String("format", "", "Config format. Options: 'hcl' or 'yaml'. Inferred from the file extension when empty.")
	portFlag := flagSet.Int("port", 0, "Serve /render, /health and /metrics on this port. 0 renders once and exits.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Number of modules preloaded concurrently. 0 uses the configured value.")
	fetchTimeoutFlag := flagSet.Duration("fetch-timeout", 10*time.Second, "Timeout for module fetches and feature app HTTP requests.")
	preloadFlag := flagSet.Bool("preload", false, "Fetch every module before the first render attempt.")
	insecureFlag := flagSet.Bool("insecure-skip-verify", false, "Skip TLS certificate verification for wss:// module fetches.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := flagSet.Args()
	if len(paths) == 0 {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPaths:        paths,
		Format:             strings.ToLower(*formatFlag),
		LogFormat:          logFormat,
		LogLevel:           logLevel,
		Port:               *portFlag,
		WorkerCount:        *workersFlag,
		FetchTimeout:       *fetchTimeoutFlag,
		Preload:            *preloadFlag,
		InsecureSkipVerify: *insecureFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "paths", paths)
	return config, false, nil
}
