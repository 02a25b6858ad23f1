package factory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accessgate/internal/config"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp(s.T())
	s.ctx = context.Background()

	s.app.Fake.AddUser(testutil.FakeUser{ID: 1, Nickname: "Alice", TrustLevel: 1, Active: true, EmailVerified: true, Minutes: 30, Whitelisted: true})
	s.app.Fake.AddUser(testutil.FakeUser{ID: 2, Nickname: "Bob", TrustLevel: 1, Active: true, EmailVerified: true, Whitelisted: true})
}

// Test: an actor connects, logs in with a token, plays and leaves
func (s *IntegrationSuite) TestTokenLoginSessionFlow() {
	c := s.app.SessionController
	actor := model.ActorID("a1b2c3d4-0000-0000-0000-000000000001")

	// Step 1: the name is on the access list
	s.Require().True(c.Prelogin(s.ctx, "Alice").Allowed)

	// Step 2: join without a remembered session
	c.Join(actor, "Alice", model.Origin{Address: "10.0.0.1"})
	s.Eventually(func() bool {
		state, _ := s.app.AuthGate.State(actor)
		return state == model.GateUnverified
	}, waitFor, tick)
	s.False(c.Allow(actor, model.ActionMove).Allowed)

	// Step 3: redeem a token
	s.app.Fake.AddToken("tok-1", "Alice")
	result, err := c.Login(s.ctx, actor, "tok-1")
	s.Require().NoError(err)
	s.True(result.Authenticated)
	s.True(s.app.Fake.HasSession("Alice", string(actor)))
	s.Eventually(func() bool { return s.app.PlaytimeTracker.Tracked(actor) }, waitFor, tick)
	s.True(c.Allow(actor, model.ActionMove).Allowed)

	// Step 4: play for ten minutes
	s.app.MockClock.Advance(5 * time.Minute)
	s.app.PlaytimeTracker.Tick(s.ctx)
	s.app.MockClock.Advance(5 * time.Minute)
	s.app.PlaytimeTracker.Tick(s.ctx)

	u, _ := s.app.Fake.User(1)
	s.Equal(40, u.Minutes)

	// Step 5: leave and flush the remainder
	s.app.MockClock.Advance(3 * time.Minute)
	c.Quit(s.ctx, actor)

	u, _ = s.app.Fake.User(1)
	s.Equal(43, u.Minutes)
	s.False(s.app.PlaytimeTracker.Tracked(actor))
	_, cached := s.app.IdentityService.Get(actor)
	s.False(cached)
}

// Test: a remembered session authenticates without a token and reputation flows
func (s *IntegrationSuite) TestSessionResumeAndReputation() {
	c := s.app.SessionController
	alice := model.ActorID("a1b2c3d4-0000-0000-0000-000000000001")
	bob := model.ActorID("a1b2c3d4-0000-0000-0000-000000000002")

	s.app.Fake.AddSession("Alice", string(alice))
	s.app.Fake.AddSession("Bob", string(bob))
	c.Join(alice, "Alice", model.Origin{})
	c.Join(bob, "Bob", model.Origin{})
	s.Eventually(func() bool {
		return s.app.PlaytimeTracker.Tracked(alice) && s.app.PlaytimeTracker.Tracked(bob)
	}, waitFor, tick)

	result, err := c.Grant(s.ctx, alice, "bob")
	s.Require().NoError(err)
	s.Equal(1, result.Delta)

	u, _ := s.app.Fake.User(2)
	s.Equal(1, u.Reputation)

	_, err = c.Grant(s.ctx, alice, "Bob")
	s.ErrorIs(err, model.ErrOnCooldown)

	s.app.MockClock.Advance(time.Hour)
	_, err = c.Grant(s.ctx, alice, "Bob")
	s.NoError(err)
}

// Test: an operator ban disconnects the actor through the hub
func (s *IntegrationSuite) TestOperatorBanReachesHost() {
	c := s.app.SessionController
	alice := model.ActorID("a1b2c3d4-0000-0000-0000-000000000001")

	sub := s.app.Hub.Subscribe()
	defer s.app.Hub.Unsubscribe(sub)

	s.app.Fake.AddSession("Alice", string(alice))
	c.Join(alice, "Alice", model.Origin{})
	s.Eventually(func() bool { return s.app.PlaytimeTracker.Tracked(alice) }, waitFor, tick)

	ident, err := c.Ban(s.ctx, "", "Alice", "griefing", 0)
	s.Require().NoError(err)
	s.True(ident.Banned)

	s.Eventually(func() bool {
		for {
			select {
			case msg := <-sub.Messages():
				if strings.Contains(string(msg), "event: disconnect") && strings.Contains(string(msg), string(alice)) {
					return true
				}
			default:
				return false
			}
		}
	}, waitFor, tick)
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	settings := config.Default()
	settings.Server.BridgeKey = "k"
	settings.Storage.Type = "etcd"

	_, err := New(Config{Settings: settings})
	if err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestNewRequiresBridgeKey(t *testing.T) {
	_, err := New(Config{Settings: config.Default()})
	if err == nil {
		t.Fatal("expected error without a bridge key")
	}
}
