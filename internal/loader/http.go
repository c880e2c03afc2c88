package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ShareScopeHeader carries the share scope on HTTP module requests.
const ShareScopeHeader = "X-Share-Scope"

// maxManifestSize limits how much of a response body is read.
const maxManifestSize = 1 << 20

// HTTPTransport fetches manifests over HTTP.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates an HTTPTransport with a pooled client.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch implements Transport.
func (t *HTTPTransport) Fetch(ctx context.Context, moduleID, shareScope string) ([]byte, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, moduleID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ShareScopeHeader, shareScope)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() {
	if t.Client != nil {
		t.Client.CloseIdleConnections()
	}
}
