package loader

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Default socket.io event names used by SocketIOTransport.
const (
	DefaultRequestEvent  = "module:fetch"
	DefaultResponseEvent = "module:manifest"
	DefaultErrorEvent    = "module:error"
)

// SocketIOTransport requests manifests from a socket.io server. Module ids
// are ws:// or wss:// URLs; the path is the socket.io path and the fragment,
// if any, the namespace. Each fetch uses its own connection.
type SocketIOTransport struct {
	RequestEvent       string
	ResponseEvent      string
	ErrorEvent         string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type socketResult struct {
	data []byte
	err  error
}

// Fetch implements Transport. It emits the request event with the module id
// and share scope, and waits for the response or error event.
func (t *SocketIOTransport) Fetch(ctx context.Context, moduleID, shareScope string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "module", moduleID)

	parsedURL, err := url.Parse(moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if t.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	scheme := "http"
	if parsedURL.Scheme == "wss" {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, parsedURL.Host)
	namespace := "/"
	if parsedURL.Fragment != "" {
		namespace = "/" + parsedURL.Fragment
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)
	defer io.Disconnect()

	done := make(chan socketResult, 1)
	send := func(r socketResult) {
		select {
		case done <- r:
		default:
		}
	}

	io.Once(types.EventName(t.event(t.ResponseEvent, DefaultResponseEvent)), func(data ...any) {
		logger.Debug("Manifest event received.")
		if len(data) == 0 {
			send(socketResult{err: fmt.Errorf("empty manifest response")})
			return
		}
		send(encodeSocketPayload(data[0]))
	})
	io.Once(types.EventName(t.event(t.ErrorEvent, DefaultErrorEvent)), func(data ...any) {
		send(socketResult{err: fmt.Errorf("server rejected module request: %v", data)})
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		send(socketResult{err: fmt.Errorf("socket.io connection failed: %w", err)})
	})
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected, requesting manifest.", "sid", io.Id())
		io.Emit(t.event(t.RequestEvent, DefaultRequestEvent), map[string]any{
			"id":          moduleID,
			"share_scope": shareScope,
		})
	})

	io.Connect()

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for manifest over socket.io: %w", ctx.Err())
	}
}

func (t *SocketIOTransport) event(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func encodeSocketPayload(payload any) socketResult {
	switch v := payload.(type) {
	case string:
		return socketResult{data: []byte(v)}
	case []byte:
		return socketResult{data: v}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return socketResult{err: fmt.Errorf("encoding manifest payload: %w", err)}
		}
		return socketResult{data: data}
	}
}
