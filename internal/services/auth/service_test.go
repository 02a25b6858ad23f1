package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/accessgate/internal/dependencies/mocks"
)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	service, err := New(s.clock, Config{Key: "bridge-secret", Cost: bcrypt.MinCost})
	s.Require().NoError(err)
	s.service = service
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticateAcceptsKey() {
	s.NoError(s.service.Authenticate("bridge-secret"))
}

func (s *ServiceSuite) TestAuthenticateRejectsWrongKey() {
	s.ErrorIs(s.service.Authenticate("guess"), ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAuthenticateRejectsEmptyKey() {
	s.ErrorIs(s.service.Authenticate(""), ErrInvalidCredentials)
}

func (s *ServiceSuite) TestVerifiedKeyIsRemembered() {
	s.Require().NoError(s.service.Authenticate("bridge-secret"))

	s.service.mu.RLock()
	s.Len(s.service.verified, 1)
	s.service.mu.RUnlock()

	s.NoError(s.service.Authenticate("bridge-secret"))
}

func (s *ServiceSuite) TestRejectedKeyIsNotRemembered() {
	_ = s.service.Authenticate("guess")

	s.service.mu.RLock()
	s.Empty(s.service.verified)
	s.service.mu.RUnlock()
}

func (s *ServiceSuite) TestCleanExpired() {
	s.Require().NoError(s.service.Authenticate("bridge-secret"))

	s.clock.Advance(9 * time.Minute)
	s.service.CleanExpired()
	s.service.mu.RLock()
	s.Len(s.service.verified, 1)
	s.service.mu.RUnlock()

	s.clock.Advance(time.Minute)
	s.service.CleanExpired()
	s.service.mu.RLock()
	s.Empty(s.service.verified)
	s.service.mu.RUnlock()

	// still valid, just verified again
	s.NoError(s.service.Authenticate("bridge-secret"))
}

// Construction tests

func (s *ServiceSuite) TestNewFromHash() {
	hash, err := HashKey("from-hash", bcrypt.MinCost)
	s.Require().NoError(err)

	service, err := New(s.clock, Config{Key: "ignored", KeyHash: hash})
	s.Require().NoError(err)

	s.NoError(service.Authenticate("from-hash"))
	s.ErrorIs(service.Authenticate("ignored"), ErrInvalidCredentials)
}

func (s *ServiceSuite) TestNewRejectsMalformedHash() {
	_, err := New(s.clock, Config{KeyHash: "not-a-hash"})
	s.Error(err)
}

func (s *ServiceSuite) TestNewRequiresKey() {
	_, err := New(s.clock, Config{})
	s.ErrorIs(err, ErrNoCredentials)
}
