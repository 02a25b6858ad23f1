package authgate

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accessgate/internal/dependencies/mocks"
	"github.com/mcoot/accessgate/internal/host"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/remote"
	"github.com/mcoot/accessgate/internal/services/identity"
	"github.com/mcoot/accessgate/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type ServiceSuite struct {
	suite.Suite
	fake     *testutil.FakeIdentityService
	clock    *mocks.MockClock
	cache    *identity.Service
	recorder *host.Recorder
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.fake = testutil.NewFakeIdentityService(s.T())
	s.fake.AddUser(testutil.FakeUser{ID: 1, Nickname: "Alice", TrustLevel: 1, Active: true, EmailVerified: true})
	s.fake.AddUser(testutil.FakeUser{ID: 2, Nickname: "Mallory", Active: true, Banned: true, BanReason: "griefing"})

	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	client := remote.NewWithHTTPClient(remote.Config{BaseURL: s.fake.URL(), MaxAttempts: 1}, s.fake.HTTPClient(), s.clock, testutil.NopLogger())
	s.cache = identity.New(client, s.clock, testutil.NopLogger())
	s.recorder = host.NewRecorder()
	s.service = New(client, s.cache, s.recorder, s.clock, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) TearDownTest() {
	s.service.Close()
}

func (s *ServiceSuite) waitForState(actorID model.ActorID, want model.GateState) {
	s.Eventually(func() bool {
		state, ok := s.service.State(actorID)
		return ok && state == want
	}, waitFor, tick)
}

func (s *ServiceSuite) TestExistingSessionAuthenticatesOnJoin() {
	s.fake.AddSession("Alice", "actor-1")

	s.service.Join("actor-1", "Alice", model.Origin{Address: "10.0.0.1"})

	s.waitForState("actor-1", model.GateAuthenticated)
	s.True(s.service.IsAuthenticated("actor-1"))

	ident, ok := s.cache.Get("actor-1")
	s.Require().True(ok)
	s.Equal(model.RemoteID(1), ident.RemoteID)
	s.Contains(s.recorder.Messages("actor-1")[0], "Welcome, Alice")
}

func (s *ServiceSuite) TestNoSessionAsksForLogin() {
	s.service.Join("actor-1", "Alice", model.Origin{})

	s.waitForState("actor-1", model.GateUnverified)
	s.Eventually(func() bool { return len(s.recorder.Messages("actor-1")) == 1 }, waitFor, tick)
	s.Contains(s.recorder.Messages("actor-1")[0], "/login <token>")
	s.False(s.service.IsAuthenticated("actor-1"))
}

func (s *ServiceSuite) TestSessionCheckFailureFallsBackToToken() {
	s.fake.AddSession("Alice", "actor-1")
	s.fake.Fail(testutil.RouteCheckSession, http.StatusInternalServerError)

	s.service.Join("actor-1", "Alice", model.Origin{})

	s.waitForState("actor-1", model.GateUnverified)
	_, disconnected := s.recorder.Disconnected("actor-1")
	s.False(disconnected)
}

func (s *ServiceSuite) TestRedeemTokenAuthenticatesAndCreatesSession() {
	s.fake.AddToken("tok-1", "Alice")
	s.service.Join("actor-1", "Alice", model.Origin{Address: "10.0.0.1"})
	s.waitForState("actor-1", model.GateUnverified)

	res, err := s.service.RedeemToken(s.ctx, "actor-1", "tok-1")
	s.Require().NoError(err)
	s.True(res.Authenticated)
	s.True(s.service.IsAuthenticated("actor-1"))

	s.Eventually(func() bool { return s.fake.HasSession("Alice", "actor-1") }, waitFor, tick)
}

func (s *ServiceSuite) TestRedeemInvalidToken() {
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateUnverified)

	res, err := s.service.RedeemToken(s.ctx, "actor-1", "nope")
	s.ErrorIs(err, model.ErrInvalidToken)
	s.False(res.Authenticated)
	s.NotEmpty(res.Message)

	state, _ := s.service.State("actor-1")
	s.Equal(model.GateUnverified, state)
	s.Equal(0, s.fake.Calls(testutil.RouteCreateSession))
}

func (s *ServiceSuite) TestRedeemUnknownActor() {
	_, err := s.service.RedeemToken(s.ctx, "ghost", "tok")
	s.ErrorIs(err, model.ErrActorNotFound)
}

func (s *ServiceSuite) TestTimeoutDisconnectsUnauthenticatedActor() {
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateUnverified)

	s.clock.Advance(5*time.Minute - time.Second)
	_, disconnected := s.recorder.Disconnected("actor-1")
	s.False(disconnected)

	s.clock.Advance(time.Second)
	reason, disconnected := s.recorder.Disconnected("actor-1")
	s.True(disconnected)
	s.Equal(model.ReasonExpired, reason)

	_, known := s.service.State("actor-1")
	s.False(known)
}

func (s *ServiceSuite) TestTimeoutDoesNotAffectAuthenticatedActor() {
	s.fake.AddSession("Alice", "actor-1")
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateAuthenticated)

	s.clock.Advance(10 * time.Minute)

	_, disconnected := s.recorder.Disconnected("actor-1")
	s.False(disconnected)
	s.True(s.service.IsAuthenticated("actor-1"))
}

func (s *ServiceSuite) TestBannedAccountIsDisconnected() {
	s.fake.AddSession("Mallory", "actor-2")

	s.service.Join("actor-2", "Mallory", model.Origin{})

	s.Eventually(func() bool {
		_, ok := s.recorder.Disconnected("actor-2")
		return ok
	}, waitFor, tick)
	reason, _ := s.recorder.Disconnected("actor-2")
	s.Equal(model.ReasonBanned, reason)
	s.False(s.service.IsAuthenticated("actor-2"))
}

func (s *ServiceSuite) TestRedeemTokenForBannedAccount() {
	s.fake.AddToken("tok-2", "Mallory")
	s.service.Join("actor-2", "Mallory", model.Origin{})
	s.waitForState("actor-2", model.GateUnverified)

	res, err := s.service.RedeemToken(s.ctx, "actor-2", "tok-2")
	s.ErrorIs(err, model.ErrBanned)
	s.ErrorIs(err, model.ErrAccessDenied)
	s.False(res.Authenticated)
	reason, disconnected := s.recorder.Disconnected("actor-2")
	s.True(disconnected)
	s.Equal(model.ReasonBanned, reason)
}

func (s *ServiceSuite) TestAllowBeforeAuthentication() {
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateUnverified)

	s.True(s.service.Allow("actor-1", model.ActionLook).Allowed)
	s.True(s.service.Allow("actor-1", model.ActionLoginCommand).Allowed)
	s.True(s.service.Allow("actor-1", model.ActionHostTeleport).Allowed)
	s.False(s.service.Allow("actor-1", model.ActionTeleport).Allowed)
	s.False(s.service.Allow("actor-1", model.ActionMove).Allowed)
	s.False(s.service.Allow("actor-1", model.ActionChat).Allowed)
	s.False(s.service.Allow("actor-1", model.ActionDamageTaken).Allowed)
}

func (s *ServiceSuite) TestAllowAfterAuthentication() {
	s.fake.AddSession("Alice", "actor-1")
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateAuthenticated)

	for _, action := range []model.ActionKind{model.ActionMove, model.ActionChat, model.ActionBlockBreak, model.ActionCommand} {
		s.True(s.service.Allow("actor-1", action).Allowed, action)
	}
}

func (s *ServiceSuite) TestAllowUnknownActorDenied() {
	s.False(s.service.Allow("ghost", model.ActionMove).Allowed)
}

func (s *ServiceSuite) TestRemindersAreThrottled() {
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateUnverified)
	s.Eventually(func() bool { return len(s.recorder.Messages("actor-1")) == 1 }, waitFor, tick)

	reminders := func() int {
		n := 0
		for _, m := range s.recorder.Messages("actor-1") {
			if m == msgReminder {
				n++
			}
		}
		return n
	}

	s.service.Allow("actor-1", model.ActionMove)
	s.service.Allow("actor-1", model.ActionBlockBreak)
	s.service.Allow("actor-1", model.ActionChat)
	s.Equal(1, reminders())

	s.clock.Advance(4 * time.Second)
	s.service.Allow("actor-1", model.ActionMove)
	s.Equal(1, reminders())

	s.clock.Advance(time.Second)
	s.service.Allow("actor-1", model.ActionMove)
	s.Equal(2, reminders())
}

func (s *ServiceSuite) TestSilentDenialsSendNoReminder() {
	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateUnverified)
	s.Eventually(func() bool { return len(s.recorder.Messages("actor-1")) == 1 }, waitFor, tick)

	s.service.Allow("actor-1", model.ActionDamageTaken)
	s.service.Allow("actor-1", model.ActionHunger)
	s.service.Allow("actor-1", model.ActionPickupItem)
	s.service.Allow("actor-1", model.ActionTeleport)

	s.Len(s.recorder.Messages("actor-1"), 1)
}

func (s *ServiceSuite) TestQuitCancelsInFlightCheck() {
	release := s.fake.Block(testutil.RouteCheckSession)
	defer release()
	s.fake.AddSession("Alice", "actor-1")

	s.service.Join("actor-1", "Alice", model.Origin{})
	s.Eventually(func() bool { return s.fake.Calls(testutil.RouteCheckSession) == 1 }, waitFor, tick)
	state, _ := s.service.State("actor-1")
	s.Equal(model.GateVerifying, state)

	s.service.Quit("actor-1")
	release()

	_, known := s.service.State("actor-1")
	s.False(known)
	s.Never(func() bool {
		_, ok := s.cache.Get("actor-1")
		return ok
	}, 100*time.Millisecond, tick)
}

func (s *ServiceSuite) TestOnAuthenticatedCallbackRunsOnce() {
	var mu sync.Mutex
	var seen []model.ActorID
	s.service.OnAuthenticated(func(_ context.Context, actorID model.ActorID) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, actorID)
	})
	s.fake.AddSession("Alice", "actor-1")

	s.service.Join("actor-1", "Alice", model.Origin{})
	s.waitForState("actor-1", model.GateAuthenticated)

	res, err := s.service.RedeemToken(s.ctx, "actor-1", "anything")
	s.NoError(err)
	s.True(res.Authenticated)

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]model.ActorID{"actor-1"}, seen)
}

func (s *ServiceSuite) TestClassifyCommand() {
	s.Equal(model.ActionLoginCommand, ClassifyCommand("/login abc"))
	s.Equal(model.ActionLoginCommand, ClassifyCommand("/L abc"))
	s.Equal(model.ActionLoginCommand, ClassifyCommand("/login"))
	s.Equal(model.ActionCommand, ClassifyCommand("/logout"))
	s.Equal(model.ActionCommand, ClassifyCommand("/home"))
}
