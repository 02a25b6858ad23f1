package authgate

import (
	"fmt"
	"strings"

	"github.com/mcoot/accessgate/internal/model"
)

const (
	msgLoginRequired = "Authentication required. Get a token from the website and run /login <token>. You have %s to log in."
	msgReminder      = "You are not logged in. Use /login <token> to authenticate."
	msgVerifying     = "Checking token..."
	msgExpired       = "Authentication timed out"
	msgBanned        = "You are banned from this server"
)

func welcomeMessage(claims model.SessionClaims, viaSession bool) string {
	how := "Login successful"
	if viaSession {
		how = "Logged in automatically from your saved session"
	}
	return fmt.Sprintf("%s. Welcome, %s! Role: %s, trust level: %d", how, claims.Name, claims.Role, claims.TrustLevel)
}

func bannedMessage(ident *model.Identity) string {
	if ident.BanReason == "" {
		return msgBanned
	}
	return msgBanned + ": " + ident.BanReason
}

// ClassifyCommand maps a raw command line to the action kind the gate checks.
// Only /login and its /l alias are let through before authentication.
func ClassifyCommand(line string) model.ActionKind {
	cmd := strings.ToLower(strings.TrimSpace(line))
	if cmd == "/login" || cmd == "/l" || strings.HasPrefix(cmd, "/login ") || strings.HasPrefix(cmd, "/l ") {
		return model.ActionLoginCommand
	}
	return model.ActionCommand
}
