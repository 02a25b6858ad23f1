package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accessgate/internal/dependencies/mocks"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/testutil"
)

type ClientSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	server  *httptest.Server
	hits    atomic.Int64
	// respond decides the status for the nth request (1-based)
	respond func(n int64, w http.ResponseWriter, r *http.Request)
	client  *Client
	ctx     context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.hits.Store(0)
	s.respond = func(int64, http.ResponseWriter, *http.Request) {}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.hits.Add(1)
		s.respond(n, w, r)
	}))
	s.T().Cleanup(s.server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = s.server.URL
	cfg.APIKey = "secret-key"
	s.client = NewWithHTTPClient(cfg, s.server.Client(), s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// doAsync runs Do on a goroutine so the test can drive the mock clock
func (s *ClientSuite) doAsync(method, path string, body, out any) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.client.Do(s.ctx, method, path, body, out)
	}()
	return done
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) TestDoSendsCredentialsAndBody() {
	s.respond = func(_ int64, w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer secret-key", r.Header.Get("Authorization"))
		s.Equal("application/json", r.Header.Get("Content-Type"))
		s.Equal("accessgate/1.0", r.Header.Get("User-Agent"))

		var body map[string]int
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal(42, body["playtime_minutes"])
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}

	var out successResponse
	err := s.client.Do(s.ctx, http.MethodPut, "/admin/users/1/playtime", playtimeRequest{PlaytimeMinutes: 42}, &out)
	s.Require().NoError(err)
	s.True(out.Success)
	s.Equal(int64(1), s.client.Attempts())
}

func (s *ClientSuite) TestRetriesServerErrorsWithIncreasingBackoff() {
	s.respond = func(n int64, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}

	done := s.doAsync(http.MethodGet, "/plugin/server-info", nil, nil)

	// First backoff is one base delay
	s.clock.WaitForWaiters(1)
	s.Equal(int64(1), s.hits.Load())
	s.clock.Advance(time.Second - time.Millisecond)
	s.Equal(int64(1), s.hits.Load())
	s.clock.Advance(time.Millisecond)

	// Second backoff is two base delays
	s.clock.WaitForWaiters(1)
	s.Equal(int64(2), s.hits.Load())
	s.clock.Advance(2*time.Second - time.Millisecond)
	s.Equal(int64(2), s.hits.Load())
	s.clock.Advance(time.Millisecond)

	s.Require().NoError(<-done)
	s.Equal(int64(3), s.hits.Load())
	s.Equal(int64(3), s.client.Attempts())
}

func (s *ClientSuite) TestClientErrorIsNotRetried() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad nickname"})
	}

	err := s.client.Do(s.ctx, http.MethodGet, "/admin/users/by-nick/x", nil, nil)
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrRemoteClient)

	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusBadRequest, statusErr.StatusCode)
	s.Equal("bad nickname", statusErr.Message)
	s.Equal(int64(1), s.hits.Load())
	s.Equal(0, s.clock.Pending())
}

func (s *ClientSuite) TestExhaustedRetriesReturnServerError() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	done := s.doAsync(http.MethodGet, "/plugin/server-info", nil, nil)
	s.clock.WaitForWaiters(1)
	s.clock.Advance(time.Second)
	s.clock.WaitForWaiters(1)
	s.clock.Advance(2 * time.Second)

	err := <-done
	s.ErrorIs(err, model.ErrRemoteServer)
	s.Equal(int64(3), s.hits.Load())
}

func (s *ClientSuite) TestNetworkErrorIsRetried() {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.MaxAttempts = 2
	client := NewWithHTTPClient(cfg, &http.Client{Timeout: time.Second}, s.clock, testutil.NopLogger())

	done := make(chan error, 1)
	go func() { done <- client.Do(s.ctx, http.MethodGet, "/plugin/server-info", nil, nil) }()

	s.clock.WaitForWaiters(1)
	s.clock.Advance(time.Second)

	err := <-done
	s.ErrorIs(err, model.ErrNetwork)
	s.Equal(int64(2), client.Attempts())
}

func (s *ClientSuite) TestCancelDuringBackoff() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ctx, cancel := context.WithCancel(s.ctx)

	done := make(chan error, 1)
	go func() { done <- s.client.Do(ctx, http.MethodGet, "/plugin/server-info", nil, nil) }()

	s.clock.WaitForWaiters(1)
	cancel()

	s.ErrorIs(<-done, context.Canceled)
	s.Equal(int64(1), s.hits.Load())
}

func (s *ClientSuite) TestMalformedResponseIsAnError() {
	s.respond = func(_ int64, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	}

	var out successResponse
	err := s.client.Do(s.ctx, http.MethodGet, "/plugin/server-info", nil, &out)
	s.Error(err)
	s.Equal(int64(1), s.hits.Load())
}
