// Package httpclient provides a pooled HTTP client as a process-wide registry
// service, so every feature app of every render shares one connection pool.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elbkind/feature-hub/internal/registry"
)

// ID is the registry id of the HTTP client service.
const ID = "s2:http-client"

// Version is the registry version of the HTTP client service.
const Version = "1.0.0"

// maxBodySize caps how much of a response body is decoded.
const maxBodySize = 4 << 20

// Client wraps an *http.Client with helpers used by feature apps.
type Client struct {
	HTTP *http.Client
}

// New creates a Client with a pooled transport. A zero timeout disables the
// per-request timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Definition returns the process-wide registry definition of a Client.
func Definition(timeout time.Duration) *registry.Definition {
	return &registry.Definition{
		ID:       ID,
		Version:  Version,
		Lifetime: registry.ProcessWide,
		Create: func(env *registry.Environment) (any, error) {
			env.Logger.Debug("HTTP client created.", "timeout", timeout)
			return New(timeout), nil
		},
	}
}

// GetJSON fetches url and decodes the JSON response body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(target); err != nil {
		return fmt.Errorf("decoding response of GET %s: %w", url, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.HTTP.CloseIdleConnections()
}
