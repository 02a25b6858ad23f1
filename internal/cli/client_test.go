package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsBridgeKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","remote":"ok","subscribers":1}`))
	}))
	defer server.Close()

	var result HealthResult
	require.NoError(t, NewClient(server.URL+"/", "secret").Get("/api/v1/health", &result))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, HealthResult{Status: "ok", Remote: "ok", Subscribers: 1}, result)
}

func TestClientReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_PERMITTED","message":"insufficient role"}}`))
	}))
	defer server.Close()

	err := NewClient(server.URL, "secret").Post("/api/v1/admin/ban", map[string]string{"name": "Bob"}, nil)
	require.Error(t, err)
	assert.Equal(t, "insufficient role (NOT_PERMITTED)", err.Error())
}

func TestClientReturnsRawErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewClient(server.URL, "").Get("/api/v1/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestPrintActorStatusText(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	out.Print(ActorStatus{
		ActorID:            "6f1c2a9e-1111-4c1a-9a53-0f6f2b1d7a01",
		State:              "authenticated",
		Identity:           &Identity{RemoteID: 1, Name: "Alice", Role: "player", TrustLevel: 1, Active: true},
		SessionMinutes:     7,
		TotalPlaytime:      "1h 47m",
		RemainingQuota:     -1,
		ReputationCooldown: 30 * time.Minute,
	})

	text := buf.String()
	assert.Contains(t, text, "State: authenticated")
	assert.Contains(t, text, "Account: Alice (#1)")
	assert.Contains(t, text, "Total Playtime: 1h 47m")
	assert.NotContains(t, text, "Quota Left")
	assert.Contains(t, text, "Can Give Reputation: in 30m0s")
}

func TestPrintUnauthenticatedActorOmitsPlaytime(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	out.Print(ActorStatus{ActorID: "x", State: "unverified", RemainingQuota: -1})

	assert.Contains(t, buf.String(), "State: unverified")
	assert.NotContains(t, buf.String(), "Session:")
}

func TestPrintBannedIdentity(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}
	until := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

	out.Print(Identity{RemoteID: 2, Name: "Bob", Role: "player", Banned: true, BanReason: "griefing", BanUntil: &until})

	assert.Contains(t, buf.String(), "Banned: yes (until 2024-01-04 12:00:00) griefing")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "json", w: &buf}

	out.Print(HealthResult{Status: "ok", Remote: "unreachable"})

	assert.JSONEq(t, `{"status":"ok","remote":"unreachable","subscribers":0}`, buf.String())
}

func TestParseEventDecodesDirective(t *testing.T) {
	evt := parseEvent("disconnect", `{"type":"disconnect","actor_id":"a-1","text":"bye","reason":"banned"}`)

	require.NotNil(t, evt.Directive)
	assert.Equal(t, "a-1", string(evt.Directive.ActorID))
	assert.Equal(t, "banned", evt.Directive.Reason)
	assert.Empty(t, evt.Data)
}

func TestParseEventKeepsOtherData(t *testing.T) {
	evt := parseEvent("connected", `{"client_id":"x"}`)

	assert.Nil(t, evt.Directive)
	assert.Equal(t, `{"client_id":"x"}`, evt.Data)
}
