package ctl

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errTestRejected = errors.New("test rejected")

// fakeAPI answers with fixed values and fails the first unavailable calls.
type fakeAPI struct {
	unavailable int
	registered  bool
	next        time.Time
	calls       []string
}

func (f *fakeAPI) fail(method string) error {
	f.calls = append(f.calls, method)

	if f.unavailable > 0 {
		f.unavailable--

		return status.Error(codes.Unavailable, "connection refused")
	}

	return nil
}

func (f *fakeAPI) ScheduleAlarm(context.Context, int64) (bool, error) {
	return f.registered, f.fail("schedule")
}

func (f *fakeAPI) ScheduleSnooze(_ context.Context, _ int64, minutes int) (time.Time, error) {
	return f.next.Add(time.Duration(minutes) * time.Minute), f.fail("snooze")
}

func (f *fakeAPI) CancelAlarm(context.Context, int64) error { return f.fail("cancel") }

func (f *fakeAPI) NextTrigger(context.Context, int64) (time.Time, error) {
	return f.next, f.fail("next")
}

func (f *fakeAPI) RequestChallenge(context.Context, int64) error { return f.fail("challenge") }

func (f *fakeAPI) StartListening(context.Context, int64) error { return f.fail("listen") }

func (f *fakeAPI) StopChallenge(context.Context, int64) error { return f.fail("stop-challenge") }

func (f *fakeAPI) Disconnect(context.Context, int64) error { return f.fail("disconnect") }

func (f *fakeAPI) Dismiss(context.Context, int64) error {
	f.calls = append(f.calls, "dismiss")

	return status.Error(codes.FailedPrecondition, errTestRejected.Error())
}

// TestExecute_Actions formats the result of every action.
func TestExecute_Actions(t *testing.T) {
	t.Parallel()

	next := time.Date(2024, time.July, 19, 13, 33, 0, 0, time.UTC)

	tests := []struct {
		name     string
		opts     Options
		expected string
	}{
		{"schedule", Options{Action: ActionSchedule, AlarmID: 1}, "alarm 1 scheduled for " + formatTime(next)},
		{"snooze", Options{Action: ActionSnooze, AlarmID: 1, Minutes: 5}, "alarm 1 snoozed until " +
			formatTime(next.Add(5*time.Minute))},
		{"cancel", Options{Action: ActionCancel, AlarmID: 2}, "alarm 2 cancelled"},
		{"next", Options{Action: ActionNext, AlarmID: 2}, formatTime(next)},
		{"challenge", Options{Action: ActionChallenge, AlarmID: 3}, "alarm 3 challenge started"},
		{"listen", Options{Action: ActionListen, AlarmID: 3}, "alarm 3 listening"},
		{"stop challenge", Options{Action: ActionStopChallenge, AlarmID: 3}, "alarm 3 challenge stopped"},
		{"disconnect", Options{Action: ActionDisconnect, AlarmID: 3}, "alarm 3 disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			api := &fakeAPI{registered: true, next: next}
			require.NoError(t, Execute(context.Background(), api, &tt.opts, &out))
			require.Equal(t, tt.expected+"\n", out.String())
		})
	}
}

// TestExecute_AlreadyPending reports a deduplicated schedule request.
func TestExecute_AlreadyPending(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	api := new(fakeAPI)
	require.NoError(t, Execute(context.Background(), api, &Options{Action: ActionSchedule, AlarmID: 4}, &out))
	require.Equal(t, "alarm 4 already has a pending trigger\n", out.String())
	require.Equal(t, []string{"schedule"}, api.calls)
}

// TestExecute_Errors returns server and usage errors without retrying.
func TestExecute_Errors(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	api := new(fakeAPI)

	err := Execute(context.Background(), api, &Options{Action: ActionDismiss, AlarmID: 1, Retry: true}, &out)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
	require.Equal(t, []string{"dismiss"}, api.calls)

	err = Execute(context.Background(), api, &Options{Action: "ring"}, &out)
	require.ErrorIs(t, err, ErrUnknownAction)

	api.unavailable = 1
	err = Execute(context.Background(), api, &Options{Action: ActionCancel, AlarmID: 1}, &out)
	require.Equal(t, codes.Unavailable, status.Code(err))
	require.Empty(t, out.String())
}

// TestExecute_RetriesUnavailableDaemon keeps calling until the daemon answers.
func TestExecute_RetriesUnavailableDaemon(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var out bytes.Buffer

		api := &fakeAPI{unavailable: 2}
		start := time.Now()

		require.NoError(t, Execute(context.Background(), api, &Options{Action: ActionCancel, AlarmID: 1, Retry: true}, &out))
		require.Equal(t, []string{"cancel", "cancel", "cancel"}, api.calls)
		require.Equal(t, 2*defaultRetryInterval, time.Since(start))
		require.Equal(t, "alarm 1 cancelled\n", out.String())

		// A cancelled context stops the retry loop.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		api.unavailable = 100
		err := Execute(ctx, api, &Options{Action: ActionCancel, AlarmID: 1, Retry: true}, &out)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
