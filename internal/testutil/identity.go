package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Route names for FakeIdentityService call counting and failure injection
const (
	RoutePing          = "server-info"
	RouteFetchUser     = "fetch-user"
	RouteStats         = "stats"
	RouteVerifyToken   = "verify-token"
	RouteAccess        = "server-access"
	RouteCreateSession = "create-session"
	RouteCheckSession  = "check-session"
	RoutePlaytime      = "playtime"
	RouteTrustLevel    = "trust-level"
	RouteBan           = "ban"
	RouteUnban         = "unban"
	RouteReputation    = "reputation"
	RouteActivity      = "activity"
	RouteTelemetry     = "telemetry"
	RouteServerData    = "server-data"
)

// FakeUser is a user record held by FakeIdentityService
type FakeUser struct {
	ID            int64
	Nickname      string
	Role          string
	TrustLevel    int
	Active        bool
	EmailVerified bool
	Banned        bool
	BanReason     string
	Minutes       int
	Reputation    int
	Whitelisted   bool
}

// FakeActivity is a recorded activity submission
type FakeActivity struct {
	UserID      int64
	Type        string
	Description string
}

// FakeIdentityService is an in-process identity service for tests
type FakeIdentityService struct {
	server *httptest.Server

	mu         sync.Mutex
	users      map[int64]*FakeUser
	tokens     map[string]string // token -> nickname
	sessions   map[string]bool   // nickname|player uuid
	failures   map[string]int    // route -> forced status
	calls      map[string]int
	activities []FakeActivity
	telemetry  map[string]map[string]int
	blocked    map[string]chan struct{}
}

// NewFakeIdentityService starts a fake identity service that is closed when the test ends
func NewFakeIdentityService(t testing.TB) *FakeIdentityService {
	f := &FakeIdentityService{
		users:     make(map[int64]*FakeUser),
		tokens:    make(map[string]string),
		sessions:  make(map[string]bool),
		failures:  make(map[string]int),
		calls:     make(map[string]int),
		telemetry: make(map[string]map[string]int),
		blocked:   make(map[string]chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/plugin/server-info", f.route(RoutePing, f.handlePing)).Methods(http.MethodGet)
	r.HandleFunc("/plugin/server-access", f.route(RouteAccess, f.handleAccess)).Methods(http.MethodGet)
	r.HandleFunc("/admin/users/by-nick/{nick}", f.route(RouteFetchUser, f.handleFetchUser)).Methods(http.MethodGet)
	r.HandleFunc("/admin/users/{id:[0-9]+}/stats", f.route(RouteStats, f.handleStats)).Methods(http.MethodGet)
	r.HandleFunc("/admin/users/{id:[0-9]+}/playtime", f.route(RoutePlaytime, f.handlePlaytime)).Methods(http.MethodPut)
	r.HandleFunc("/admin/users/{id:[0-9]+}/trust-level", f.route(RouteTrustLevel, f.handleTrust)).Methods(http.MethodPut)
	r.HandleFunc("/admin/users/{id:[0-9]+}/ban", f.route(RouteBan, f.handleBan)).Methods(http.MethodPut)
	r.HandleFunc("/admin/users/{id:[0-9]+}/unban", f.route(RouteUnban, f.handleUnban)).Methods(http.MethodPut)
	r.HandleFunc("/admin/users/{id:[0-9]+}/reputation", f.route(RouteReputation, f.handleReputation)).Methods(http.MethodPut)
	r.HandleFunc("/admin/user-activity", f.route(RouteActivity, f.handleActivity)).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify-game-token", f.route(RouteVerifyToken, f.handleVerifyToken)).Methods(http.MethodPost)
	r.HandleFunc("/auth/create-game-session", f.route(RouteCreateSession, f.handleCreateSession)).Methods(http.MethodPost)
	r.HandleFunc("/auth/check-game-session", f.route(RouteCheckSession, f.handleCheckSession)).Methods(http.MethodPost)
	r.HandleFunc("/profile/update-stats", f.route(RouteTelemetry, f.handleTelemetry)).Methods(http.MethodPost)
	r.HandleFunc("/settings/server-data", f.route(RouteServerData, f.handleServerData)).Methods(http.MethodPost)

	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.mu.Lock()
		for _, ch := range f.blocked {
			close(ch)
		}
		f.blocked = map[string]chan struct{}{}
		f.mu.Unlock()
		f.server.Close()
	})
	return f
}

// URL returns the base URL of the fake service
func (f *FakeIdentityService) URL() string { return f.server.URL }

// HTTPClient returns a client configured for the fake service
func (f *FakeIdentityService) HTTPClient() *http.Client { return f.server.Client() }

// AddUser registers a user
func (f *FakeIdentityService) AddUser(u FakeUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.Role == "" {
		u.Role = "user"
	}
	f.users[u.ID] = &u
}

// User returns a copy of a stored user
func (f *FakeIdentityService) User(id int64) (FakeUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return FakeUser{}, false
	}
	return *u, true
}

// AddToken makes token redeemable for nickname
func (f *FakeIdentityService) AddToken(token, nickname string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = nickname
}

// AddSession registers an existing session
func (f *FakeIdentityService) AddSession(nickname, playerUUID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionKey(nickname, playerUUID)] = true
}

// HasSession reports whether a session exists
func (f *FakeIdentityService) HasSession(nickname, playerUUID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[sessionKey(nickname, playerUUID)]
}

// Fail forces a route to answer with status. Zero clears it.
func (f *FakeIdentityService) Fail(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = status
}

// Block makes a route hang until the returned release func is called
func (f *FakeIdentityService) Block(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.blocked[route] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.blocked[route] == ch {
				delete(f.blocked, route)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
}

// Calls returns how many requests reached a route
func (f *FakeIdentityService) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Activities returns recorded activity submissions
func (f *FakeIdentityService) Activities() []FakeActivity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeActivity(nil), f.activities...)
}

// Telemetry returns the last telemetry snapshot for a nickname
func (f *FakeIdentityService) Telemetry(nickname string) map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.telemetry[nickname]
}

func sessionKey(nickname, playerUUID string) string {
	return strings.ToLower(nickname) + "|" + playerUUID
}

func (f *FakeIdentityService) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[name]++
		status := f.failures[name]
		block := f.blocked[name]
		f.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"success": false, "error": http.StatusText(status)})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeIdentityService) byNick(nick string) *FakeUser {
	for _, u := range f.users {
		if strings.EqualFold(u.Nickname, nick) {
			return u
		}
	}
	return nil
}

// withUser resolves the {id} path variable and runs fn under the lock
func (f *FakeIdentityService) withUser(w http.ResponseWriter, r *http.Request, fn func(u *FakeUser)) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "user not found"})
		return
	}
	fn(u)
}

func userJSON(u *FakeUser) map[string]any {
	return map[string]any{
		"id":                u.ID,
		"nickname":          u.Nickname,
		"role":              u.Role,
		"trust_level":       u.TrustLevel,
		"is_active":         u.Active,
		"is_email_verified": u.EmailVerified,
		"is_banned":         u.Banned,
		"ban_reason":        u.BanReason,
	}
}

func claimsJSON(u *FakeUser) map[string]any {
	return map[string]any{"id": u.ID, "nickname": u.Nickname, "role": u.Role, "trust_level": u.TrustLevel}
}

func (f *FakeIdentityService) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *FakeIdentityService) handleAccess(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byNick(r.URL.Query().Get("nickname"))
	writeJSON(w, http.StatusOK, map[string]any{"hasAccess": u != nil && u.Whitelisted})
}

func (f *FakeIdentityService) handleFetchUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byNick(mux.Vars(r)["nick"])
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": userJSON(u)})
}

func (f *FakeIdentityService) handleStats(w http.ResponseWriter, r *http.Request) {
	f.withUser(w, r, func(u *FakeUser) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":             u.ID,
			"time_played_minutes": u.Minutes,
			"is_time_limited":     u.TrustLevel == 0 && !u.EmailVerified,
			"reputation":          u.Reputation,
		})
	})
}

func decode(r *http.Request, v any) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

func (f *FakeIdentityService) handlePlaytime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Minutes int `json:"playtime_minutes"`
	}
	decode(r, &body)
	f.withUser(w, r, func(u *FakeUser) {
		u.Minutes = body.Minutes
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
}

func (f *FakeIdentityService) handleTrust(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level int `json:"trust_level"`
	}
	decode(r, &body)
	f.withUser(w, r, func(u *FakeUser) {
		u.TrustLevel = body.Level
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
}

func (f *FakeIdentityService) handleBan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	decode(r, &body)
	f.withUser(w, r, func(u *FakeUser) {
		u.Banned = true
		u.BanReason = body.Reason
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
}

func (f *FakeIdentityService) handleUnban(w http.ResponseWriter, r *http.Request) {
	f.withUser(w, r, func(u *FakeUser) {
		u.Banned = false
		u.BanReason = ""
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
}

func (f *FakeIdentityService) handleReputation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Change int `json:"reputation_change"`
	}
	decode(r, &body)
	f.withUser(w, r, func(u *FakeUser) {
		u.Reputation += body.Change
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
}

func (f *FakeIdentityService) handleActivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      int64  `json:"user_id"`
		Type        string `json:"activity_type"`
		Description string `json:"description"`
	}
	decode(r, &body)
	f.mu.Lock()
	f.activities = append(f.activities, FakeActivity{UserID: body.UserID, Type: body.Type, Description: body.Description})
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (f *FakeIdentityService) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Nickname string `json:"nickname"`
	}
	decode(r, &body)

	f.mu.Lock()
	defer f.mu.Unlock()
	nick, ok := f.tokens[body.Token]
	if !ok || !strings.EqualFold(nick, body.Nickname) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": "invalid token"})
		return
	}
	u := f.byNick(nick)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": "user not found"})
		return
	}
	delete(f.tokens, body.Token)
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "message": "token accepted", "user": claimsJSON(u)})
}

func (f *FakeIdentityService) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname   string `json:"nickname"`
		PlayerUUID string `json:"player_uuid"`
	}
	decode(r, &body)
	f.mu.Lock()
	f.sessions[sessionKey(body.Nickname, body.PlayerUUID)] = true
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *FakeIdentityService) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname   string `json:"nickname"`
		PlayerUUID string `json:"player_uuid"`
	}
	decode(r, &body)

	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byNick(body.Nickname)
	if u == nil || !f.sessions[sessionKey(body.Nickname, body.PlayerUUID)] {
		writeJSON(w, http.StatusOK, map[string]any{"session_valid": false, "error": "no session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_valid": true, "user": claimsJSON(u)})
}

func (f *FakeIdentityService) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nick  string         `json:"minecraft_nick"`
		Stats map[string]int `json:"stats"`
	}
	decode(r, &body)
	f.mu.Lock()
	f.telemetry[body.Nick] = body.Stats
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *FakeIdentityService) handleServerData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
