package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case ActorStatus:
		o.printActorStatus(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Identity response type (matches API)
type Identity struct {
	RemoteID      int64      `json:"remote_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Role          string     `json:"role"`
	TrustLevel    int        `json:"trust_level"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"email_verified"`
	Banned        bool       `json:"banned"`
	BanReason     string     `json:"ban_reason,omitempty"`
	BanUntil      *time.Time `json:"ban_until,omitempty"`
}

// Stats response type
type Stats struct {
	MinutesPlayed int  `json:"minutes_played"`
	QuotaLimited  bool `json:"quota_limited"`
	Reputation    int  `json:"reputation"`
	LoginCount    int  `json:"login_count"`
	WarningCount  int  `json:"warning_count"`
}

// ActorStatus response type
type ActorStatus struct {
	ActorID            string        `json:"actor_id"`
	State              string        `json:"state"`
	Identity           *Identity     `json:"identity,omitempty"`
	Stats              *Stats        `json:"stats,omitempty"`
	SessionMinutes     int           `json:"session_minutes"`
	TotalMinutes       int           `json:"total_minutes"`
	TotalPlaytime      string        `json:"total_playtime"`
	RemainingQuota     int           `json:"remaining_quota"`
	CanGrant           bool          `json:"can_grant"`
	ReputationCooldown time.Duration `json:"reputation_cooldown"`
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Remote      string `json:"remote"`
	Subscribers int    `json:"subscribers"`
}

func (o *Output) printIdentity(i Identity) {
	fmt.Fprintf(o.w, "Account: %s (#%d)\n", i.Name, i.RemoteID)
	fmt.Fprintf(o.w, "Role: %s\n", i.Role)
	fmt.Fprintf(o.w, "Trust Level: %d\n", i.TrustLevel)
	fmt.Fprintf(o.w, "Active: %s\n", yesNo(i.Active))
	fmt.Fprintf(o.w, "Email Verified: %s\n", yesNo(i.EmailVerified))
	if i.Banned {
		until := "permanent"
		if i.BanUntil != nil {
			until = "until " + i.BanUntil.Format(time.DateTime)
		}
		fmt.Fprintf(o.w, "Banned: yes (%s) %s\n", until, i.BanReason)
	} else {
		fmt.Fprintln(o.w, "Banned: no")
	}
}

func (o *Output) printActorStatus(s ActorStatus) {
	fmt.Fprintf(o.w, "Actor: %s\n", s.ActorID)
	fmt.Fprintf(o.w, "State: %s\n", s.State)
	if s.Identity != nil {
		o.printIdentity(*s.Identity)
	}
	if s.State != "authenticated" {
		return
	}

	fmt.Fprintf(o.w, "Session: %d min\n", s.SessionMinutes)
	fmt.Fprintf(o.w, "Total Playtime: %s\n", s.TotalPlaytime)
	if s.RemainingQuota >= 0 {
		fmt.Fprintf(o.w, "Quota Left: %d min\n", s.RemainingQuota)
	}
	if s.Stats != nil {
		fmt.Fprintf(o.w, "Reputation: %d\n", s.Stats.Reputation)
	}
	if s.CanGrant {
		fmt.Fprintln(o.w, "Can Give Reputation: yes")
	} else {
		fmt.Fprintf(o.w, "Can Give Reputation: in %s\n", s.ReputationCooldown.Round(time.Second))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Remote != "" {
		fmt.Fprintf(o.w, "Identity Service: %s\n", h.Remote)
	}
	fmt.Fprintf(o.w, "Host Subscribers: %d\n", h.Subscribers)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
