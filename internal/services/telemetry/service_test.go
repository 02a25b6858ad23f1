package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accessgate/internal/dependencies/mocks"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/remote"
	"github.com/mcoot/accessgate/internal/services/identity"
	"github.com/mcoot/accessgate/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	fake    *testutil.FakeIdentityService
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.fake = testutil.NewFakeIdentityService(s.T())
	s.fake.AddUser(testutil.FakeUser{ID: 1, Nickname: "Alice", TrustLevel: 1, Active: true})

	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	client := remote.NewWithHTTPClient(remote.Config{BaseURL: s.fake.URL(), MaxAttempts: 1}, s.fake.HTTPClient(), s.clock, testutil.NopLogger())
	cache := identity.New(client, s.clock, testutil.NopLogger())
	s.ctx = context.Background()

	_, err := cache.LoadOrFetch(s.ctx, "actor-1", "Alice")
	s.Require().NoError(err)

	s.service = New(client, cache, s.clock, DefaultConfig(), testutil.NopLogger())
	s.service.Track("actor-1")
}

func (s *ServiceSuite) TestReportTooSoonAfterJoinIsHeld() {
	s.clock.Advance(10 * time.Second)
	s.False(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 50}))
	s.Equal(0, s.fake.Calls(testutil.RouteTelemetry))
}

func (s *ServiceSuite) TestFirstReportAfterIntervalIsSent() {
	s.clock.Advance(30 * time.Second)
	s.True(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 1}))
	s.Equal(map[string]int{"blocks_broken": 1}, s.fake.Telemetry("Alice"))
}

func (s *ServiceSuite) TestSmallChangesAreSkipped() {
	s.clock.Advance(time.Minute)
	s.Require().True(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 5, "jumps_count": 0}))

	s.clock.Advance(time.Minute)
	s.False(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 15, "jumps_count": 500}))

	s.clock.Advance(time.Minute)
	s.True(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 16, "jumps_count": 500}))
	s.Equal(2, s.fake.Calls(testutil.RouteTelemetry))
}

func (s *ServiceSuite) TestFinishForcesLastSnapshot() {
	s.clock.Advance(time.Second)
	s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 3})

	s.True(s.service.Finish(s.ctx, "actor-1"))
	s.Equal(map[string]int{"blocks_broken": 3}, s.fake.Telemetry("Alice"))

	s.False(s.service.Report(s.ctx, "actor-1", map[string]int{"blocks_broken": 100}))
}

func (s *ServiceSuite) TestFinishWithoutReportsSendsNothing() {
	s.True(s.service.Tracked("actor-1"))
	s.False(s.service.Finish(s.ctx, "actor-1"))
	s.Equal(0, s.fake.Calls(testutil.RouteTelemetry))
	s.False(s.service.Tracked("actor-1"))
}

func (s *ServiceSuite) TestUntrackedActorIgnored() {
	s.clock.Advance(time.Minute)
	s.False(s.service.Report(s.ctx, "ghost", map[string]int{"blocks_broken": 100}))
}

func (s *ServiceSuite) TestReportServer() {
	s.True(s.service.ReportServer(s.ctx, remote.ServerData{OnlinePlayers: 3, MaxPlayers: 20}))
	s.Equal(1, s.fake.Calls(testutil.RouteServerData))
}

func (s *ServiceSuite) TestUnknownIdentityNotSubmitted() {
	s.service.Track(model.ActorID("actor-9"))
	s.clock.Advance(time.Minute)
	s.False(s.service.Report(s.ctx, "actor-9", map[string]int{"blocks_broken": 100}))
}
