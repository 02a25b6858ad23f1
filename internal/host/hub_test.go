package host

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/accessgate/internal/dependencies/mocks"
	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/testutil"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		expected string
	}{
		{name: "single line", event: "message", data: `{"a":1}`, expected: "event: message\ndata: {\"a\":1}\n\n"},
		{name: "multi line", event: "message", data: "a\nb", expected: "event: message\ndata: a\ndata: b\n\n"},
		{name: "carriage returns", event: "x", data: "a\r\nb", expected: "event: x\ndata: a\ndata: b\n\n"},
		{name: "empty", event: "ping", data: "", expected: "event: ping\ndata: \n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatEvent(tt.event, tt.data)))
		})
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func decodeDirective(t *testing.T, msg []byte) model.Directive {
	t.Helper()
	var data string
	for _, line := range strings.Split(string(msg), "\n") {
		if strings.HasPrefix(line, "data: ") {
			data += strings.TrimPrefix(line, "data: ")
		}
	}
	var d model.Directive
	require.NoError(t, json.Unmarshal([]byte(data), &d))
	return d
}

func TestHubDeliversDirectivesToSubscribers(t *testing.T) {
	hub := newTestHub(t)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	hub.Disconnect("actor-1", model.ReasonExpired, "Authentication timed out")

	select {
	case msg := <-sub.Messages():
		assert.True(t, strings.HasPrefix(string(msg), "event: disconnect\n"))
		d := decodeDirective(t, msg)
		assert.Equal(t, model.DirectiveDisconnect, d.Type)
		assert.Equal(t, model.ActorID("actor-1"), d.ActorID)
		assert.Equal(t, model.ReasonExpired, d.Reason)
	case <-time.After(time.Second):
		t.Fatal("directive not delivered")
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := newTestHub(t)
	sub := hub.Subscribe()
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unsubscribe(sub)

	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestServeSSEStreamsDirectives(t *testing.T) {
	hub := newTestHub(t)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeSSE))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Message("actor-2", "Please log in")

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: message") {
			break
		}
	}
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"text":"Please log in"`)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Message("a", "hello")
	r.Disconnect("a", model.ReasonQuotaExceeded, "bye")
	r.Message("b", "other")

	assert.Equal(t, []string{"hello"}, r.Messages("a"))
	reason, ok := r.Disconnected("a")
	assert.True(t, ok)
	assert.Equal(t, model.ReasonQuotaExceeded, reason)
	_, ok = r.Disconnected("b")
	assert.False(t, ok)
}
