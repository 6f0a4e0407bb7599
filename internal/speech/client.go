package speech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/sayit"
)

const (
	// DefaultHandshakeTimeout bounds the websocket handshake.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultLanguage is used when no language is configured.
	DefaultLanguage = "en-US"

	eventsBuffer = 32
)

// Message types exchanged with the recognition service.
const (
	messageStart   = "start"
	messageStop    = "stop"
	messageReady   = "ready"
	messagePartial = "partial"
	messageFinal   = "final"
	messageError   = "error"
)

// message is the JSON envelope of every frame.
type message struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Config holds the recognizer connection settings.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:8090/v1/listen.
	URL string
	// Language is the BCP 47 language of the scripts.
	Language string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
}

// stream is one open connection.
type stream struct {
	conn *websocket.Conn
	done chan struct{}
}

// Client is a sayit.Recognizer backed by a websocket recognition service.
type Client struct {
	config Config
	dialer websocket.Dialer
	events chan sayit.Event

	// mu guards current and serializes writes.
	mu      sync.Mutex
	current *stream
}

// NewClient creates a client. No connection is made until StartCapture.
func NewClient(config Config) *Client {
	if config.Language == "" {
		config.Language = DefaultLanguage
	}

	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	return &Client{
		config: config,
		dialer: websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		events: make(chan sayit.Event, eventsBuffer),
	}
}

// Events streams recognizer events. The channel is never closed.
func (c *Client) Events() <-chan sayit.Event {
	return c.events
}

// StartCapture opens the connection if needed and starts a new attempt.
// Dial failures wrap the matching sayit.ErrorReason.
func (c *Client) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		s, err := c.dial(ctx)
		if err != nil {
			return err
		}

		c.current = s

		go c.read(logger.WithName(context.WithoutCancel(ctx), "speech"), s)
	}

	start := message{Type: messageStart, Language: c.config.Language}
	if err := c.current.conn.WriteJSON(start); err != nil {
		c.closeLocked()

		return fmt.Errorf("send start: %w: %w", classify(err), err)
	}

	return nil
}

// StopCapture ends the attempt and closes the connection.
func (c *Client) StopCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}

	if err := c.current.conn.WriteJSON(message{Type: messageStop}); err != nil {
		logger.DebugKV(ctx, "Send stop failed", "error", err)
	}

	return c.closeLocked()
}

// Close releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Client) dial(ctx context.Context) (*stream, error) {
	header := http.Header{}
	if c.config.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		reason := classify(err)

		if resp != nil {
			_ = resp.Body.Close()
			reason = reasonForStatus(resp.StatusCode)

			logger.ErrorKV(ctx, "Recognizer handshake failed", "status", resp.StatusCode, "error", err)
		}

		return nil, fmt.Errorf("dial recognizer: %w: %w", reason, err)
	}

	logger.DebugKV(ctx, "Connected to recognizer", "url", c.config.URL)

	return &stream{conn: conn, done: make(chan struct{})}, nil
}

// read translates frames into events until the connection ends. Errors on a
// connection closed by StopCapture are not reported.
func (c *Client) read(ctx context.Context, s *stream) {
	for {
		var frame message
		if err := s.conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			owned := c.current == s
			if owned {
				_ = c.closeLocked()
			}
			c.mu.Unlock()

			if owned {
				logger.WarnKV(ctx, "Recognizer connection lost", "error", err)
				c.emit(s, sayit.Event{Type: sayit.EventError, Reason: classify(err)})
			}

			return
		}

		event, ok := toEvent(frame)
		if !ok {
			logger.WarnKV(ctx, "Unknown recognizer message", "type", frame.Type)

			continue
		}

		c.emit(s, event)
	}
}

func (c *Client) emit(s *stream, event sayit.Event) {
	select {
	case c.events <- event:
	case <-s.done:
		// Stream closed, the attempt is over.
	}
}

// closeLocked closes the current stream. Callers hold mu.
func (c *Client) closeLocked() error {
	if c.current == nil {
		return nil
	}

	s := c.current
	c.current = nil

	close(s.done)

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close recognizer connection: %w", err)
	}

	return nil
}

func toEvent(frame message) (sayit.Event, bool) {
	switch frame.Type {
	case messageReady:
		return sayit.Event{Type: sayit.EventReady}, true
	case messagePartial:
		return sayit.Event{Type: sayit.EventPartial, Text: frame.Text}, true
	case messageFinal:
		return sayit.Event{Type: sayit.EventFinal, Text: frame.Text}, true
	case messageError:
		return sayit.Event{Type: sayit.EventError, Reason: sayit.ParseErrorReason(frame.Code)}, true
	default:
		return sayit.Event{}, false
	}
}

func classify(err error) sayit.ErrorReason {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return sayit.ReasonTimeout
	}

	return sayit.ReasonNetwork
}

func reasonForStatus(code int) sayit.ErrorReason {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return sayit.ReasonPermission
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return sayit.ReasonBusy
	default:
		return sayit.ReasonNetwork
	}
}
