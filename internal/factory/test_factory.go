package factory

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/accessgate/internal/config"
	"github.com/mcoot/accessgate/internal/dependencies/mocks"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/remote"
	"github.com/mcoot/accessgate/internal/services/auth"
	"github.com/mcoot/accessgate/internal/storage/memory"
	"github.com/mcoot/accessgate/internal/testutil"
)

// TestBridgeKey is the bridge key accepted by a TestApp
const TestBridgeKey = "test-bridge-key"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	Fake      *testutil.FakeIdentityService
}

// NewTestApp creates an App backed by a fake identity service, in-memory
// storage and a mock clock. Everything is torn down when the test ends.
func NewTestApp(t testing.TB) *TestApp {
	t.Helper()

	fake := testutil.NewFakeIdentityService(t)
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()

	authService, err := auth.New(mockClock, auth.Config{Key: TestBridgeKey, Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	client := remote.NewWithHTTPClient(
		remote.Config{BaseURL: fake.URL(), APIKey: "test-api-key", MaxAttempts: 1},
		fake.HTTPClient(),
		mockClock,
		logger,
	)
	hub := host.NewHub(mockClock, logger)
	go hub.Run()

	app := newWithDependencies(config.Default(), memory.New(), client, hub, authService, mockClock, logger)
	t.Cleanup(func() {
		app.SessionController.Shutdown(context.Background())
		_ = app.Close()
	})

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		Fake:      fake,
	}
}
