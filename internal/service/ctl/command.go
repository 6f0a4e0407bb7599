package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/sayit-alarm/internal/config"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/service/common"
)

// Action names an alarm-ctl operation.
type Action string

const (
	// ActionSchedule registers the next trigger of an alarm.
	ActionSchedule Action = "schedule"
	// ActionSnooze snoozes an alarm.
	ActionSnooze Action = "snooze"
	// ActionCancel cancels every pending trigger of an alarm.
	ActionCancel Action = "cancel"
	// ActionNext prints when an alarm fires next.
	ActionNext Action = "next"
	// ActionChallenge starts the challenge of a ringing alarm.
	ActionChallenge Action = "challenge"
	// ActionDismiss dismisses a ringing alarm.
	ActionDismiss Action = "dismiss"
	// ActionListen restarts recognition after a failed attempt or recognizer error.
	ActionListen Action = "listen"
	// ActionStopChallenge abandons the challenge and lets the alarm ring again.
	ActionStopChallenge Action = "stop-challenge"
	// ActionDisconnect silences a ringing alarm without dismissing it.
	ActionDisconnect Action = "disconnect"
)

// Options configures one alarm-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Action is the operation to run.
	Action Action
	// AlarmID is the target alarm.
	AlarmID int64
	// Minutes is the snooze length, zero uses the daemon default.
	Minutes int
	// Retry keeps retrying while the daemon is unreachable.
	Retry bool
}

// defaultRetryInterval is the delay between attempts while the daemon is unreachable.
const defaultRetryInterval = 1 * time.Second

// ErrUnknownAction is returned for actions alarm-ctl does not implement.
var ErrUnknownAction = errors.New("unknown action")

// API is the part of the daemon client alarm-ctl calls.
type API interface {
	ScheduleAlarm(ctx context.Context, alarmID int64) (bool, error)
	ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (time.Time, error)
	CancelAlarm(ctx context.Context, alarmID int64) error
	NextTrigger(ctx context.Context, alarmID int64) (time.Time, error)
	RequestChallenge(ctx context.Context, alarmID int64) error
	Dismiss(ctx context.Context, alarmID int64) error
	StartListening(ctx context.Context, alarmID int64) error
	StopChallenge(ctx context.Context, alarmID int64) error
	Disconnect(ctx context.Context, alarmID int64) error
}

// Run dials the daemon and executes opts.Action, writing the result to w.
func Run(ctx context.Context, opts *Options, w io.Writer) error {
	ctx = logger.WithName(ctx, "alarm-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the daemon's audit log.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithActor(actor),
	)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling alarm clock daemon",
		"server_address", serverAddress,
		"action", opts.Action,
		"alarm_id", opts.AlarmID,
	)

	return Execute(ctx, client, opts, w)
}

// Execute runs opts.Action against api. With opts.Retry an unavailable daemon is
// retried until ctx is done.
func Execute(ctx context.Context, api API, opts *Options, w io.Writer) error {
	// attempt tries once, reporting whether the call should be retried.
	attempt := func() (bool, error) {
		message, err := call(ctx, api, opts)
		if err == nil {
			_, err = fmt.Fprintln(w, message)

			return false, err
		}

		if opts.Retry && status.Code(err) == codes.Unavailable {
			logger.WarnKV(ctx, "Daemon unavailable, retrying", "action", opts.Action, "error", err)

			return true, nil
		}

		return false, err
	}

	retry, err := attempt()
	if !retry {
		return err
	}

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if retry, err = attempt(); !retry {
				return err
			}
		}
	}
}

// call performs the action and formats its result.
func call(ctx context.Context, api API, opts *Options) (string, error) {
	id := opts.AlarmID

	switch opts.Action {
	case ActionSchedule:
		registered, err := api.ScheduleAlarm(ctx, id)
		if err != nil {
			return "", err
		}

		if !registered {
			return fmt.Sprintf("alarm %d already has a pending trigger", id), nil
		}

		next, err := api.NextTrigger(ctx, id)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d scheduled for %s", id, formatTime(next)), nil
	case ActionSnooze:
		until, err := api.ScheduleSnooze(ctx, id, opts.Minutes)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d snoozed until %s", id, formatTime(until)), nil
	case ActionCancel:
		if err := api.CancelAlarm(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d cancelled", id), nil
	case ActionNext:
		next, err := api.NextTrigger(ctx, id)
		if err != nil {
			return "", err
		}

		return formatTime(next), nil
	case ActionChallenge:
		if err := api.RequestChallenge(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d challenge started", id), nil
	case ActionDismiss:
		if err := api.Dismiss(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d dismissed", id), nil
	case ActionListen:
		if err := api.StartListening(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d listening", id), nil
	case ActionStopChallenge:
		if err := api.StopChallenge(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d challenge stopped", id), nil
	case ActionDisconnect:
		if err := api.Disconnect(ctx, id); err != nil {
			return "", err
		}

		return fmt.Sprintf("alarm %d disconnected", id), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, opts.Action)
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}
