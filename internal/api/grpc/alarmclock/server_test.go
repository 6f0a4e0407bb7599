package alarmclock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sayit-alarm/internal/delivery"
	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/schedule"
)

// fakeService implements the Service interface for unit testing the transport.
type fakeService struct {
	// err is returned by every operation when set.
	err error
	// now is the instant returned by time based operations.
	now time.Time
	// snoozeMinutes records the last snooze length.
	snoozeMinutes int
	// dismissed records the last dismissed alarm.
	dismissed int64
	// calls records the challenge control operations in order.
	calls []string
}

func (f *fakeService) ScheduleAlarm(_ context.Context, alarmID int64) (bool, error) {
	return alarmID == 1, f.err
}

func (f *fakeService) ScheduleSnooze(_ context.Context, _ int64, minutes int) (time.Time, error) {
	f.snoozeMinutes = minutes

	return f.now.Add(time.Duration(minutes) * time.Minute), f.err
}

func (f *fakeService) CancelAlarm(context.Context, int64) error { return f.err }

func (f *fakeService) NextTrigger(context.Context, int64) (time.Time, error) { return f.now, f.err }

func (f *fakeService) RequestChallenge(context.Context, int64) error { return f.err }

func (f *fakeService) Dismiss(_ context.Context, alarmID int64) error {
	f.dismissed = alarmID

	return f.err
}

func (f *fakeService) StartListening(_ context.Context, alarmID int64) error {
	f.calls = append(f.calls, fmt.Sprintf("listen %d", alarmID))

	return f.err
}

func (f *fakeService) StopChallenge(_ context.Context, alarmID int64) error {
	f.calls = append(f.calls, fmt.Sprintf("stop %d", alarmID))

	return f.err
}

func (f *fakeService) Disconnect(_ context.Context, alarmID int64) error {
	f.calls = append(f.calls, fmt.Sprintf("disconnect %d", alarmID))

	return f.err
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return s
}

// TestServer_Validation ensures invalid requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(new(fakeService))

	_, err := s.ScheduleAlarm(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Dismiss(ctx, wrapperspb.Int64(0))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.StartListening(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.StopChallenge(ctx, wrapperspb.Int64(-2))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Disconnect(ctx, wrapperspb.Int64(0))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ScheduleSnooze(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ScheduleSnooze(ctx, mustStruct(t, map[string]any{FieldMinutes: 5}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ScheduleSnooze(ctx, mustStruct(t, map[string]any{FieldAlarmID: 1, FieldMinutes: 2.5}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ScheduleSnooze(ctx, mustStruct(t, map[string]any{FieldAlarmID: "1"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ScheduleSnooze(ctx, mustStruct(t, map[string]any{FieldAlarmID: 1, FieldMinutes: -5}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_ErrorMapping converts service errors into status codes.
func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: fmt.Errorf("get alarm 3: %w", domain.ErrNotFound), code: codes.NotFound},
		{err: schedule.ErrInvalidSnooze, code: codes.InvalidArgument},
		{err: schedule.ErrAlarmDisabled, code: codes.FailedPrecondition},
		{err: delivery.ErrNoSession, code: codes.FailedPrecondition},
		{err: delivery.ErrInvalidTransition, code: codes.FailedPrecondition},
		{err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{err: errors.New("disk on fire"), code: codes.Internal},
	}

	for _, tt := range tests {
		s := NewServer(&fakeService{err: tt.err})

		_, err := s.RequestChallenge(context.Background(), wrapperspb.Int64(3))
		require.Equal(t, tt.code, status.Code(err), tt.err.Error())

		_, err = s.StartListening(context.Background(), wrapperspb.Int64(3))
		require.Equal(t, tt.code, status.Code(err), tt.err.Error())
	}
}

// TestServer_OverGRPC exercises the hand-declared service through a real gRPC connection.
func TestServer_OverGRPC(t *testing.T) {
	t.Parallel()

	listener := bufconn.Listen(1 << 20)
	service := &fakeService{now: time.Date(2024, time.December, 3, 14, 20, 0, 0, time.UTC)}

	server := grpc.NewServer()
	RegisterAlarmClockServer(server, NewServer(service))

	go func() { _ = server.Serve(listener) }()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	client := NewAlarmClockClient(conn)

	registered, err := client.ScheduleAlarm(ctx, wrapperspb.Int64(1))
	require.NoError(t, err)
	require.True(t, registered.GetValue())

	registered, err = client.ScheduleAlarm(ctx, wrapperspb.Int64(2))
	require.NoError(t, err)
	require.False(t, registered.GetValue())

	at, err := client.ScheduleSnooze(ctx, mustStruct(t, map[string]any{FieldAlarmID: 1, FieldMinutes: 5}))
	require.NoError(t, err)
	require.Equal(t, 5, service.snoozeMinutes)
	require.Equal(t, service.now.Add(5*time.Minute), at.AsTime())

	next, err := client.NextTrigger(ctx, wrapperspb.Int64(1))
	require.NoError(t, err)
	require.Equal(t, service.now, next.AsTime())

	_, err = client.Dismiss(ctx, wrapperspb.Int64(4))
	require.NoError(t, err)
	require.Equal(t, int64(4), service.dismissed)

	_, err = client.StartListening(ctx, wrapperspb.Int64(4))
	require.NoError(t, err)

	_, err = client.StopChallenge(ctx, wrapperspb.Int64(4))
	require.NoError(t, err)

	_, err = client.Disconnect(ctx, wrapperspb.Int64(4))
	require.NoError(t, err)
	require.Equal(t, []string{"listen 4", "stop 4", "disconnect 4"}, service.calls)

	_, err = client.CancelAlarm(ctx, wrapperspb.Int64(-1))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
