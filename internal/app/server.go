package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/metric"
	"github.com/gin-gonic/gin"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Handler returns the HTTP handler serving /health, /render and /metrics.
func (a *App) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), a.metrics.Middleware(), a.requestLogger())
	r.GET("/health", a.healthHandler)
	r.GET("/render", a.renderHandler)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	return r
}

// healthHandler reports that the process is up.
func (a *App) healthHandler(c *gin.Context) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", c.Request.RemoteAddr)
	c.String(http.StatusOK, "OK\n")
}

// renderHandler renders the configured page and returns the result bundle.
func (a *App) renderHandler(c *gin.Context) {
	res, err := a.RenderOnce(c.Request.Context())
	if err != nil {
		c.JSON(renderStatus(err), gin.H{
			"error":   err.Error(),
			"outcome": metric.Outcome(err),
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// renderStatus maps a render error to an HTTP status.
func renderStatus(err error) int {
	var (
		failure     *asyncssr.RenderFailure
		convergence *asyncssr.ConvergenceTimeoutError
		timeout     *asyncssr.RenderTimeoutError
	)
	switch {
	case errors.As(err, &timeout), errors.As(err, &convergence):
		return http.StatusGatewayTimeout
	case errors.As(err, &failure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs every request at a level chosen by its status.
func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		log := a.logger.Debug
		if status >= 500 {
			log = a.logger.Error
		} else if status >= 400 {
			log = a.logger.Warn
		}
		log("HTTP request served.",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		)
	}
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (a *App) serve(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.serveListener(ctx, ln)
}

func (a *App) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting.", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed.", "error", err)
		return err
	}
	a.logger.Debug("HTTP server shut down gracefully.")
	return nil
}
