package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mcoot/accessgate/internal/model"
)

// FetchIdentity looks a user up by display name. An unknown name yields (nil, nil).
// Failures are logged and returned so callers can tell "absent" from "unavailable".
func (c *Client) FetchIdentity(ctx context.Context, name string) (*model.Identity, error) {
	var env userEnvelope
	err := c.Do(ctx, http.MethodGet, "/admin/users/by-nick/"+url.PathEscape(name), nil, &env)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		c.logger.Error("failed to fetch identity", slog.String("name", name), slog.String("error", err.Error()))
		return nil, err
	}
	if !env.Success || env.User == nil {
		return nil, nil
	}

	ident, known := env.User.toModel()
	if !known {
		c.logger.Warn("unknown role from identity service, treating as user",
			slog.String("name", name), slog.String("role", env.User.Role))
	}
	return ident, nil
}

// FetchStats loads the profile counters for a remote user
func (c *Client) FetchStats(ctx context.Context, id model.RemoteID) (*model.Stats, bool) {
	var dto statsDTO
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/admin/users/%d/stats", id), nil, &dto); err != nil {
		c.logger.Error("failed to fetch stats", slog.Int64("remote_id", int64(id)), slog.String("error", err.Error()))
		return nil, false
	}
	if dto.UserID == 0 {
		dto.UserID = int64(id)
	}
	return dto.toModel(), true
}

// UpdatePlaytime replaces the cumulative playtime total
func (c *Client) UpdatePlaytime(ctx context.Context, id model.RemoteID, minutes int) bool {
	path := fmt.Sprintf("/admin/users/%d/playtime", id)
	return c.doBool(ctx, http.MethodPut, path, playtimeRequest{PlaytimeMinutes: minutes}, "update playtime",
		slog.Int64("remote_id", int64(id)), slog.Int("minutes", minutes))
}

// SetTrustLevel changes a user's trust level
func (c *Client) SetTrustLevel(ctx context.Context, id model.RemoteID, level int) bool {
	path := fmt.Sprintf("/admin/users/%d/trust-level", id)
	return c.doBool(ctx, http.MethodPut, path, trustLevelRequest{TrustLevel: level}, "set trust level",
		slog.Int64("remote_id", int64(id)), slog.Int("level", level))
}

// SetBan bans a user. durationDays of zero or less issues a permanent ban.
func (c *Client) SetBan(ctx context.Context, id model.RemoteID, reason string, durationDays int) bool {
	req := banRequest{Reason: reason, Type: "permanent"}
	if durationDays > 0 {
		req.Type = "temporary"
		req.Duration = durationDays
		req.Unit = "days"
	}
	path := fmt.Sprintf("/admin/users/%d/ban", id)
	return c.doBool(ctx, http.MethodPut, path, req, "ban user",
		slog.Int64("remote_id", int64(id)), slog.String("type", req.Type))
}

// ClearBan lifts a ban
func (c *Client) ClearBan(ctx context.Context, id model.RemoteID) bool {
	path := fmt.Sprintf("/admin/users/%d/unban", id)
	return c.doBool(ctx, http.MethodPut, path, nil, "unban user", slog.Int64("remote_id", int64(id)))
}

// UpdateReputation applies a signed reputation delta
func (c *Client) UpdateReputation(ctx context.Context, id model.RemoteID, delta int, reason string) bool {
	path := fmt.Sprintf("/admin/users/%d/reputation", id)
	return c.doBool(ctx, http.MethodPut, path, reputationRequest{ReputationChange: delta, Reason: reason}, "update reputation",
		slog.Int64("remote_id", int64(id)), slog.Int("delta", delta))
}

// SubmitActivity appends an entry to the user's remote activity log
func (c *Client) SubmitActivity(ctx context.Context, id model.RemoteID, activity model.ActivityType, description string, metadata map[string]any) bool {
	req := activityRequest{
		UserID:       int64(id),
		ActivityType: string(activity),
		Description:  description,
		Metadata:     metadata,
	}
	return c.doBool(ctx, http.MethodPost, "/admin/user-activity", req, "submit activity",
		slog.Int64("remote_id", int64(id)), slog.String("activity", string(activity)))
}

// doBool runs a mutation whose only interesting result is success
func (c *Client) doBool(ctx context.Context, method, path string, body any, what string, attrs ...any) bool {
	if err := c.Do(ctx, method, path, body, nil); err != nil {
		c.logger.Error("failed to "+what, append(attrs, slog.String("error", err.Error()))...)
		return false
	}
	return true
}
