package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/accessgate/internal/api"
	"github.com/mcoot/accessgate/internal/factory"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/testutil"
)

const aliceID = "6f1c2a9e-1111-4c1a-9a53-0f6f2b1d7a01"

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	key        string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "gatectl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/gatectl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		key:        factory.TestBridgeKey,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runWithKey(r.key, args...)
}

func (r *cliRunner) runWithKey(key string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--key", key,
		"--key-file", filepath.Join(os.TempDir(), "gatectl-no-such-key-file"),
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(), "ACCESSGATE_BRIDGE_KEY=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer is a real HTTP server in front of a test application
type testServer struct {
	app *factory.TestApp
	url string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp(t)
	app.Fake.AddUser(testutil.FakeUser{ID: 1, Nickname: "Alice", TrustLevel: 1, Active: true, EmailVerified: true, Minutes: 30, Whitelisted: true})
	app.Fake.AddUser(testutil.FakeUser{ID: 2, Nickname: "Bob", TrustLevel: 1, Active: true, EmailVerified: true, Whitelisted: true})

	router := api.NewRouter(api.RouterConfig{
		Logger:     testutil.NopLogger(),
		Auth:       app.AuthService,
		Controller: app.SessionController,
		Remote:     app.Remote,
		Hub:        app.Hub,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", router)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{app: app, url: server.URL}
}

// Response types for JSON parsing
type healthResponse struct {
	Status string `json:"status"`
	Remote string `json:"remote"`
}

type identityResponse struct {
	Name       string `json:"name"`
	TrustLevel int    `json:"trust_level"`
	Banned     bool   `json:"banned"`
	BanReason  string `json:"ban_reason"`
}

type statusResponse struct {
	ActorID  string            `json:"actor_id"`
	State    string            `json:"state"`
	Identity *identityResponse `json:"identity"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Remote)
}

func TestCLI_RejectsWrongKey(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.runWithKey("not-the-key", "ban", "Bob", "spam")
	require.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")
}

func TestCLI_BanUnbanTrust(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("ban", "Bob", "repeated", "griefing", "--days", "3")
	require.NoError(t, err, "output: %s", output)

	var ident identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &ident))
	assert.True(t, ident.Banned)
	bob, _ := ts.app.Fake.User(2)
	assert.True(t, bob.Banned)
	assert.Equal(t, "repeated griefing", bob.BanReason)

	output, err = cli.run("unban", "Bob")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &ident))
	assert.False(t, ident.Banned)

	output, err = cli.run("trust", "Bob", "2")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &ident))
	assert.Equal(t, 2, ident.TrustLevel)

	output, err = cli.run("trust", "Bob", "9")
	require.Error(t, err)
	assert.Contains(t, output, "INVALID_TRUST_LEVEL")
}

func TestCLI_ActorShowAndSync(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("actor", "show", aliceID)
	require.Error(t, err)
	assert.Contains(t, output, "ACTOR_NOT_FOUND")

	ts.app.Fake.AddSession("Alice", aliceID)
	ts.app.SessionController.Join(model.ActorID(aliceID), "Alice", model.Origin{})
	require.Eventually(t, func() bool {
		return ts.app.PlaytimeTracker.Tracked(model.ActorID(aliceID))
	}, 2*time.Second, 5*time.Millisecond)

	output, err = cli.run("actor", "show", aliceID)
	require.NoError(t, err, "output: %s", output)

	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(output), &status))
	assert.Equal(t, "authenticated", status.State)
	require.NotNil(t, status.Identity)
	assert.Equal(t, "Alice", status.Identity.Name)

	output, err = cli.run("sync", aliceID)
	require.NoError(t, err, "output: %s", output)
}

func TestCLI_HashKey(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("hash-key", "s3cret", "--cost", "4")
	require.NoError(t, err, "output: %s", output)

	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.True(t, strings.HasPrefix(msg.Message, "$2a$04$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(msg.Message), []byte("s3cret")))
}
