package app

import (
	"context"
	"encoding/json"
	"fmt"
)

// Run executes the main application logic. With a port configured it serves
// HTTP until ctx is cancelled; otherwise it renders once and writes the result
// as JSON to the output writer.
func (a *App) Run(ctx context.Context) error {
	a.logger.Debug("App.Run method started.")
	defer a.Close()

	if a.config.Port > 0 {
		return a.serve(ctx, a.config.Port)
	}

	res, err := a.RenderOnce(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	a.logger.Debug("App.Run method finished.", "attempts", res.Attempts)
	return nil
}
