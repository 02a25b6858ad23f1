package remote

import (
	"context"
	"log/slog"
	"net/http"
)

// SubmitTelemetry forwards a statistics snapshot for a display name
func (c *Client) SubmitTelemetry(ctx context.Context, name string, stats map[string]int) bool {
	var resp successResponse
	if err := c.Do(ctx, http.MethodPost, "/profile/update-stats", telemetryRequest{MinecraftNick: name, Stats: stats}, &resp); err != nil {
		c.logger.Error("failed to submit telemetry", slog.String("name", name), slog.String("error", err.Error()))
		return false
	}
	if !resp.Success {
		c.logger.Warn("telemetry rejected", slog.String("name", name), slog.String("reason", resp.Error))
	}
	return resp.Success
}

// SubmitServerData forwards a host status snapshot
func (c *Client) SubmitServerData(ctx context.Context, data ServerData) bool {
	var resp successResponse
	if err := c.Do(ctx, http.MethodPost, "/settings/server-data", data, &resp); err != nil {
		c.logger.Error("failed to submit server data", slog.String("error", err.Error()))
		return false
	}
	return resp.Success
}
