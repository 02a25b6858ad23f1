package remote

import (
	"time"

	"github.com/mcoot/accessgate/internal/model"
)

// Wire formats used by the identity service

type userDTO struct {
	ID              int64  `json:"id"`
	Nickname        string `json:"nickname"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	TrustLevel      int    `json:"trust_level"`
	IsActive        bool   `json:"is_active"`
	IsEmailVerified bool   `json:"is_email_verified"`
	IsBanned        bool   `json:"is_banned"`
	BanReason       string `json:"ban_reason"`
	BanUntil        string `json:"ban_until"`
}

type userEnvelope struct {
	Success bool     `json:"success"`
	User    *userDTO `json:"user"`
}

type statsDTO struct {
	UserID            int64 `json:"user_id"`
	TimePlayedMinutes int   `json:"time_played_minutes"`
	IsTimeLimited     bool  `json:"is_time_limited"`
	Reputation        int   `json:"reputation"`
	TotalLogins       int   `json:"total_logins"`
	WarningsCount     int   `json:"warnings_count"`
}

type claimsUserDTO struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname"`
	Role       string `json:"role"`
	TrustLevel int    `json:"trust_level"`
}

type verifyTokenRequest struct {
	Token    string `json:"token"`
	Nickname string `json:"nickname"`
}

type verifyTokenResponse struct {
	Valid   bool           `json:"valid"`
	User    *claimsUserDTO `json:"user"`
	Message string         `json:"message"`
	Error   string         `json:"error"`
}

type createSessionRequest struct {
	Nickname   string `json:"nickname"`
	PlayerUUID string `json:"player_uuid"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
}

type checkSessionRequest struct {
	Nickname   string `json:"nickname"`
	PlayerUUID string `json:"player_uuid"`
	IPAddress  string `json:"ip_address"`
}

type checkSessionResponse struct {
	SessionValid bool           `json:"session_valid"`
	User         *claimsUserDTO `json:"user"`
	Error        string         `json:"error"`
}

type accessResponse struct {
	HasAccess bool `json:"hasAccess"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type playtimeRequest struct {
	PlaytimeMinutes int `json:"playtime_minutes"`
}

type trustLevelRequest struct {
	TrustLevel int `json:"trust_level"`
}

type banRequest struct {
	Reason   string `json:"reason"`
	Type     string `json:"type"`
	Duration int    `json:"duration,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

type reputationRequest struct {
	ReputationChange int    `json:"reputation_change"`
	Reason           string `json:"reason"`
}

type activityRequest struct {
	UserID       int64          `json:"user_id"`
	ActivityType string         `json:"activity_type"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type telemetryRequest struct {
	MinecraftNick string         `json:"minecraft_nick"`
	Stats         map[string]int `json:"stats"`
}

// ServerData is the host status snapshot forwarded to the identity service
type ServerData struct {
	ServerIP      string  `json:"server_ip"`
	ServerPort    int     `json:"server_port"`
	TPS           float64 `json:"tps"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MaxMemory     int64   `json:"max_memory"`
	UsedMemory    int64   `json:"used_memory"`
	FreeMemory    int64   `json:"free_memory"`
	OnlinePlayers int     `json:"online_players"`
	MaxPlayers    int     `json:"max_players"`
	ServerVersion string  `json:"server_version"`
	PluginsCount  int     `json:"plugins_count"`
	LoadedWorlds  int     `json:"loaded_worlds"`
}

var banTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (u *userDTO) toModel() (*model.Identity, bool) {
	role, known := model.ParseRole(u.Role)
	ident := &model.Identity{
		RemoteID:      model.RemoteID(u.ID),
		Name:          u.Nickname,
		Email:         u.Email,
		Role:          role,
		TrustLevel:    u.TrustLevel,
		Active:        u.IsActive,
		EmailVerified: u.IsEmailVerified,
		Banned:        u.IsBanned,
		BanReason:     u.BanReason,
	}
	if u.BanUntil != "" {
		for _, layout := range banTimeLayouts {
			if t, err := time.Parse(layout, u.BanUntil); err == nil {
				ident.BanUntil = &t
				break
			}
		}
	}
	return ident, known
}

func (s *statsDTO) toModel() *model.Stats {
	return &model.Stats{
		RemoteID:      model.RemoteID(s.UserID),
		MinutesPlayed: s.TimePlayedMinutes,
		QuotaLimited:  s.IsTimeLimited,
		Reputation:    s.Reputation,
		LoginCount:    s.TotalLogins,
		WarningCount:  s.WarningsCount,
	}
}

func (u *claimsUserDTO) toClaims(message string) model.SessionClaims {
	role, _ := model.ParseRole(u.Role)
	return model.SessionClaims{
		Valid:      true,
		RemoteID:   model.RemoteID(u.ID),
		Name:       u.Nickname,
		Role:       role,
		TrustLevel: u.TrustLevel,
		Message:    message,
	}
}
