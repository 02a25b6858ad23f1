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

// Ping probes identity service reachability
func (c *Client) Ping(ctx context.Context) error {
	var resp successResponse
	if err := c.Do(ctx, http.MethodGet, "/plugin/server-info", nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: server-info reported failure", model.ErrRemoteServer)
	}
	return nil
}

// CheckAccess asks whether a display name is on the access list
func (c *Client) CheckAccess(ctx context.Context, name string) (bool, error) {
	var resp accessResponse
	if err := c.Do(ctx, http.MethodGet, "/plugin/server-access?nickname="+url.QueryEscape(name), nil, &resp); err != nil {
		c.logger.Error("failed to check access list", slog.String("name", name), slog.String("error", err.Error()))
		return false, err
	}
	return resp.HasAccess, nil
}

// VerifyToken redeems a one-time game token. A rejected token is a normal
// invalid result carrying the service's message.
func (c *Client) VerifyToken(ctx context.Context, token, name string) model.SessionClaims {
	var resp verifyTokenResponse
	err := c.Do(ctx, http.MethodPost, "/auth/verify-game-token", verifyTokenRequest{Token: token, Nickname: name}, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return model.SessionClaims{Message: rejectionMessage(statusErr.Message, "invalid or expired token")}
		}
		c.logger.Error("failed to verify token", slog.String("name", name), slog.String("error", err.Error()))
		return model.SessionClaims{Message: "identity service unavailable"}
	}
	if !resp.Valid || resp.User == nil {
		return model.SessionClaims{Message: rejectionMessage(resp.Error, resp.Message)}
	}
	return resp.User.toClaims(resp.Message)
}

// CreateSession records a new session for the name, client id and origin
func (c *Client) CreateSession(ctx context.Context, name string, actorID model.ActorID, origin model.Origin) bool {
	req := createSessionRequest{
		Nickname:   name,
		PlayerUUID: string(actorID),
		IPAddress:  origin.Address,
		UserAgent:  origin.UserAgent,
	}
	var resp successResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/create-game-session", req, &resp); err != nil {
		c.logger.Error("failed to create session", slog.String("name", name), slog.String("error", err.Error()))
		return false
	}
	return resp.Success
}

// CheckSession looks for an existing valid session. The error is non-nil only
// when the service could not answer.
func (c *Client) CheckSession(ctx context.Context, name string, actorID model.ActorID, origin model.Origin) (model.SessionClaims, error) {
	req := checkSessionRequest{
		Nickname:   name,
		PlayerUUID: string(actorID),
		IPAddress:  origin.Address,
	}
	var resp checkSessionResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/check-game-session", req, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return model.SessionClaims{Message: statusErr.Message}, nil
		}
		c.logger.Error("failed to check session", slog.String("name", name), slog.String("error", err.Error()))
		return model.SessionClaims{}, err
	}
	if !resp.SessionValid || resp.User == nil {
		return model.SessionClaims{Message: resp.Error}, nil
	}
	return resp.User.toClaims(""), nil
}

func rejectionMessage(candidates ...string) string {
	for _, m := range candidates {
		if m != "" {
			return m
		}
	}
	return "unknown error"
}
