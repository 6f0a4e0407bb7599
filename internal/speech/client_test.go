package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sayit-alarm/internal/sayit"
)

const (
	testTimeout = 5 * time.Second
	// hangup makes the fake service drop the connection.
	hangup = "hangup"
)

// fakeService is a websocket recognition service driven by the test.
type fakeService struct {
	server   *httptest.Server
	received chan message
	replies  chan message
}

// newFakeService answers every received start with the queued replies.
func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	f := &fakeService{
		received: make(chan message, 16),
		replies:  make(chan message, 16),
	}

	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer func() { _ = conn.Close() }()

		for {
			var frame message
			if err = conn.ReadJSON(&frame); err != nil {
				return
			}

			f.received <- frame

			if frame.Type != messageStart {
				continue
			}

			for drained := false; !drained; {
				select {
				case reply := <-f.replies:
					if reply.Type == hangup {
						return
					}

					if err = conn.WriteJSON(reply); err != nil {
						return
					}
				default:
					drained = true
				}
			}
		}
	}))

	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeService) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func nextEvent(t *testing.T, c *Client) sayit.Event {
	t.Helper()

	select {
	case event := <-c.Events():
		return event
	case <-time.After(testTimeout):
		require.FailNow(t, "timed out waiting for an event")
	}

	return sayit.Event{}
}

func nextMessage(t *testing.T, f *fakeService) message {
	t.Helper()

	select {
	case frame := <-f.received:
		return frame
	case <-time.After(testTimeout):
		require.FailNow(t, "timed out waiting for a message")
	}

	return message{}
}

// TestClient_Events maps service messages to recognizer events in order.
func TestClient_Events(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)
	service.replies <- message{Type: messageReady}
	service.replies <- message{Type: messagePartial, Text: "rise and"}
	service.replies <- message{Type: "metadata"}
	service.replies <- message{Type: messageFinal, Text: "rise and shine"}
	service.replies <- message{Type: messageError, Code: "busy"}

	client := NewClient(Config{URL: service.url(), APIKey: "secret", Language: "en-GB"})

	defer func() { _ = client.Close() }()

	require.NoError(t, client.StartCapture(context.Background()))

	start := nextMessage(t, service)
	require.Equal(t, messageStart, start.Type)
	require.Equal(t, "en-GB", start.Language)

	require.Equal(t, sayit.Event{Type: sayit.EventReady}, nextEvent(t, client))
	require.Equal(t, sayit.Event{Type: sayit.EventPartial, Text: "rise and"}, nextEvent(t, client))
	require.Equal(t, sayit.Event{Type: sayit.EventFinal, Text: "rise and shine"}, nextEvent(t, client))
	require.Equal(t, sayit.Event{Type: sayit.EventError, Reason: sayit.ReasonBusy}, nextEvent(t, client))

	// A second attempt reuses the connection.
	require.NoError(t, client.StartCapture(context.Background()))
	require.Equal(t, messageStart, nextMessage(t, service).Type)

	require.NoError(t, client.StopCapture(context.Background()))
	require.Equal(t, messageStop, nextMessage(t, service).Type)

	// Closing on our side is not reported as an error.
	select {
	case event := <-client.Events():
		require.Failf(t, "unexpected event", "%+v", event)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, client.StopCapture(context.Background()))
}

// TestClient_DialErrors wraps the reason matching the handshake failure.
func TestClient_DialErrors(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)

	client := NewClient(Config{URL: service.url(), APIKey: "wrong"})
	err := client.StartCapture(context.Background())

	var reason sayit.ErrorReason
	require.True(t, errors.As(err, &reason))
	require.Equal(t, sayit.ReasonPermission, reason)

	client = NewClient(Config{URL: "ws://127.0.0.1:1/listen"})
	err = client.StartCapture(context.Background())
	require.True(t, errors.As(err, &reason))
	require.Equal(t, sayit.ReasonNetwork, reason)
}

// TestClient_ConnectionLost reports a server side close as a network error.
func TestClient_ConnectionLost(t *testing.T) {
	t.Parallel()

	service := newFakeService(t)
	service.replies <- message{Type: hangup}

	client := NewClient(Config{URL: service.url(), APIKey: "secret"})

	require.NoError(t, client.StartCapture(context.Background()))
	nextMessage(t, service)

	event := nextEvent(t, client)
	require.Equal(t, sayit.EventError, event.Type)
	require.Equal(t, sayit.ReasonNetwork, event.Reason)

	// The next attempt dials again.
	require.NoError(t, client.StartCapture(context.Background()))
	require.Equal(t, messageStart, nextMessage(t, service).Type)
	require.NoError(t, client.Close())
}

// TestReasonForStatus maps handshake statuses.
func TestReasonForStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, sayit.ReasonPermission, reasonForStatus(http.StatusForbidden))
	require.Equal(t, sayit.ReasonBusy, reasonForStatus(http.StatusTooManyRequests))
	require.Equal(t, sayit.ReasonNetwork, reasonForStatus(http.StatusBadGateway))
}
