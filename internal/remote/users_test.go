package remote

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/accessgate/internal/model"
)

func (s *ClientSuite) TestFetchIdentityDecodesUser() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		s.Equal("/admin/users/by-nick/Alice", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user": map[string]any{
				"id": 7, "nickname": "Alice", "role": "moderator", "trust_level": 2,
				"is_active": true, "is_email_verified": true, "is_banned": true,
				"ban_reason": "griefing", "ban_until": "2024-02-01T00:00:00Z",
			},
		})
	}

	ident, err := s.client.FetchIdentity(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Require().NotNil(ident)
	s.Equal(model.RemoteID(7), ident.RemoteID)
	s.Equal(model.RoleModerator, ident.Role)
	s.Equal(2, ident.TrustLevel)
	s.True(ident.Banned)
	s.False(ident.HasServerAccess())
	s.Require().NotNil(ident.BanUntil)
	s.True(ident.BanUntil.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *ClientSuite) TestFetchIdentityNotFoundIsAbsent() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
	}

	ident, err := s.client.FetchIdentity(s.ctx, "Nobody")
	s.NoError(err)
	s.Nil(ident)
}

func (s *ClientSuite) TestFetchIdentityUnknownRoleFallsBackToUser() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    map[string]any{"id": 1, "nickname": "Bob", "role": "superuser"},
		})
	}

	ident, err := s.client.FetchIdentity(s.ctx, "Bob")
	s.Require().NoError(err)
	s.Equal(model.RoleUser, ident.Role)
	s.False(ident.Role.Can(model.CapModerate))
}

func (s *ClientSuite) TestFetchStats() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		s.Equal("/admin/users/7/stats", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": 7, "time_played_minutes": 120, "is_time_limited": true,
			"reputation": 5, "total_logins": 3, "warnings_count": 1,
		})
	}

	stats, ok := s.client.FetchStats(s.ctx, 7)
	s.Require().True(ok)
	s.Equal(120, stats.MinutesPlayed)
	s.True(stats.QuotaLimited)
	s.Equal(5, stats.Reputation)
}

func (s *ClientSuite) TestSetBanTemporaryAndPermanent() {
	var bodies []banRequest
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPut, r.Method)
		s.Equal("/admin/users/3/ban", r.URL.Path)
		var body banRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}

	s.True(s.client.SetBan(s.ctx, 3, "spam", 7))
	s.True(s.client.SetBan(s.ctx, 3, "cheating", 0))

	s.Require().Len(bodies, 2)
	s.Equal(banRequest{Reason: "spam", Type: "temporary", Duration: 7, Unit: "days"}, bodies[0])
	s.Equal(banRequest{Reason: "cheating", Type: "permanent"}, bodies[1])
}

func (s *ClientSuite) TestMutationFailureReturnsFalse() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}

	s.False(s.client.SetTrustLevel(s.ctx, 3, 2))
	s.False(s.client.ClearBan(s.ctx, 3))
	s.False(s.client.UpdateReputation(s.ctx, 3, 1, "helpful"))
	s.Equal(int64(3), s.hits.Load())
}

func (s *ClientSuite) TestVerifyTokenValid() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		var body verifyTokenRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal(verifyTokenRequest{Token: "abc", Nickname: "Alice"}, body)
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":   true,
			"message": "welcome",
			"user":    map[string]any{"id": 7, "nickname": "Alice", "role": "admin", "trust_level": 3},
		})
	}

	claims := s.client.VerifyToken(s.ctx, "abc", "Alice")
	s.True(claims.Valid)
	s.Equal(model.RemoteID(7), claims.RemoteID)
	s.Equal(model.RoleAdmin, claims.Role)
	s.Equal("welcome", claims.Message)
}

func (s *ClientSuite) TestVerifyTokenRejected() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": "token expired"})
	}

	claims := s.client.VerifyToken(s.ctx, "abc", "Alice")
	s.False(claims.Valid)
	s.Equal("token expired", claims.Message)
}

func (s *ClientSuite) TestCheckSessionInvalidIsNotAnError() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		var body checkSessionRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("10.0.0.1", body.IPAddress)
		writeJSON(w, http.StatusOK, map[string]any{"session_valid": false, "error": "no session"})
	}

	claims, err := s.client.CheckSession(s.ctx, "Alice", "uuid-1", model.Origin{Address: "10.0.0.1"})
	s.NoError(err)
	s.False(claims.Valid)
}

func (s *ClientSuite) TestCheckAccessUsesQueryParameter() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		s.Equal("/plugin/server-access", r.URL.Path)
		s.Equal("Alice B", r.URL.Query().Get("nickname"))
		writeJSON(w, http.StatusOK, map[string]bool{"hasAccess": true})
	}

	ok, err := s.client.CheckAccess(s.ctx, "Alice B")
	s.NoError(err)
	s.True(ok)
}

func (s *ClientSuite) TestPingReportsFailureEnvelope() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
	}

	s.ErrorIs(s.client.Ping(s.ctx), model.ErrRemoteServer)
}
