//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/sayit-alarm/internal/api/grpc/alarmclock"
	"github.com/oshokin/sayit-alarm/internal/config"
)

// Client wraps the gRPC AlarmClock client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the AlarmClock client.
	api api.AlarmClockClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent with every call for the daemon's audit log.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the requesting actor to every call.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the alarm clock daemon.
// Note: this uses insecure transport credentials; the daemon is meant to listen
// on a loopback or otherwise trusted address.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm clock: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewAlarmClockClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ScheduleAlarm registers the next trigger of an alarm. It reports false when
// a trigger was already pending.
func (c *Client) ScheduleAlarm(ctx context.Context, alarmID int64) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ScheduleAlarm(callCtx, wrapperspb.Int64(alarmID))
	if err != nil {
		return false, fmt.Errorf("schedule alarm: %w", err)
	}

	return response.GetValue(), nil
}

// ScheduleSnooze snoozes an alarm. Zero minutes uses the daemon default.
func (c *Client) ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (time.Time, error) {
	request, err := structpb.NewStruct(map[string]any{
		api.FieldAlarmID: alarmID,
		api.FieldMinutes: minutes,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("build snooze request: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ScheduleSnooze(callCtx, request)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule snooze: %w", err)
	}

	return response.AsTime(), nil
}

// CancelAlarm cancels every pending trigger of an alarm.
func (c *Client) CancelAlarm(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.CancelAlarm(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("cancel alarm: %w", err)
	}

	return nil
}

// NextTrigger returns when an alarm fires next.
func (c *Client) NextTrigger(ctx context.Context, alarmID int64) (time.Time, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.NextTrigger(callCtx, wrapperspb.Int64(alarmID))
	if err != nil {
		return time.Time{}, fmt.Errorf("next trigger: %w", err)
	}

	return response.AsTime(), nil
}

// RequestChallenge starts the SayIt challenge of a ringing alarm.
func (c *Client) RequestChallenge(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.RequestChallenge(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("request challenge: %w", err)
	}

	return nil
}

// Dismiss dismisses a ringing alarm.
func (c *Client) Dismiss(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Dismiss(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("dismiss: %w", err)
	}

	return nil
}

// StartListening restarts recognition of the challenge of a ringing alarm.
func (c *Client) StartListening(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.StartListening(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	return nil
}

// StopChallenge abandons the challenge and lets the alarm ring again.
func (c *Client) StopChallenge(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.StopChallenge(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("stop challenge: %w", err)
	}

	return nil
}

// Disconnect silences a ringing alarm without dismissing it.
func (c *Client) Disconnect(ctx context.Context, alarmID int64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Disconnect(callCtx, wrapperspb.Int64(alarmID)); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, when
// known, travels as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, api.ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
