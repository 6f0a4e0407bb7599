package alarmclock

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sayit-alarm/internal/delivery"
	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/schedule"
)

// Service abstracts the daemon operations the transport layer depends on.
type Service interface {
	ScheduleAlarm(ctx context.Context, alarmID int64) (bool, error)
	// ScheduleSnooze snoozes the alarm. Zero minutes selects the configured default.
	ScheduleSnooze(ctx context.Context, alarmID int64, minutes int) (time.Time, error)
	CancelAlarm(ctx context.Context, alarmID int64) error
	NextTrigger(ctx context.Context, alarmID int64) (time.Time, error)
	RequestChallenge(ctx context.Context, alarmID int64) error
	Dismiss(ctx context.Context, alarmID int64) error
	// StartListening retries recognition of the current challenge attempt.
	StartListening(ctx context.Context, alarmID int64) error
	StopChallenge(ctx context.Context, alarmID int64) error
	// Disconnect ends the session of a ringing alarm without dismissing it.
	Disconnect(ctx context.Context, alarmID int64) error
}

// Server implements the AlarmClock gRPC API.
type Server struct {
	// service provides the daemon operations.
	service Service
}

var _ AlarmClockServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// ScheduleAlarm registers the next trigger of an alarm. The response is false
// when a trigger was already pending.
func (s *Server) ScheduleAlarm(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	registered, err := s.service.ScheduleAlarm(ctx, alarmID)
	if err != nil {
		return nil, toStatus(ctx, MethodScheduleAlarm, err)
	}

	return wrapperspb.Bool(registered), nil
}

// ScheduleSnooze snoozes an alarm and returns when it rings again.
func (s *Server) ScheduleSnooze(ctx context.Context, req *structpb.Struct) (*timestamppb.Timestamp, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	alarmID, err := integerField(req, FieldAlarmID, true)
	if err != nil {
		return nil, err
	}

	if alarmID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "alarm_id must be positive")
	}

	minutes, err := integerField(req, FieldMinutes, false)
	if err != nil {
		return nil, err
	}

	if minutes < 0 || minutes > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "minutes must be a positive number")
	}

	at, err := s.service.ScheduleSnooze(ctx, alarmID, int(minutes))
	if err != nil {
		return nil, toStatus(ctx, MethodScheduleSnooze, err)
	}

	return timestamppb.New(at), nil
}

// CancelAlarm cancels every pending trigger of an alarm.
func (s *Server) CancelAlarm(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.CancelAlarm(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodCancelAlarm, err)
	}

	return new(emptypb.Empty), nil
}

// NextTrigger returns when an alarm fires next.
func (s *Server) NextTrigger(ctx context.Context, req *wrapperspb.Int64Value) (*timestamppb.Timestamp, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	at, err := s.service.NextTrigger(ctx, alarmID)
	if err != nil {
		return nil, toStatus(ctx, MethodNextTrigger, err)
	}

	return timestamppb.New(at), nil
}

// RequestChallenge starts the SayIt challenge of a ringing alarm.
func (s *Server) RequestChallenge(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.RequestChallenge(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodRequestChallenge, err)
	}

	return new(emptypb.Empty), nil
}

// Dismiss dismisses a ringing alarm, starting the challenge when it has scripts.
func (s *Server) Dismiss(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.Dismiss(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodDismiss, err)
	}

	return new(emptypb.Empty), nil
}

// StartListening restarts recognition of a challenge after a failed attempt
// or a recognizer error.
func (s *Server) StartListening(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.StartListening(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodStartListening, err)
	}

	return new(emptypb.Empty), nil
}

// StopChallenge abandons the challenge and returns the alarm to ringing.
func (s *Server) StopChallenge(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.StopChallenge(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodStopChallenge, err)
	}

	return new(emptypb.Empty), nil
}

// Disconnect silences a ringing alarm without dismissing it.
func (s *Server) Disconnect(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	alarmID, err := alarmIDFrom(req)
	if err != nil {
		return nil, err
	}

	if err = s.service.Disconnect(ctx, alarmID); err != nil {
		return nil, toStatus(ctx, MethodDisconnect, err)
	}

	return new(emptypb.Empty), nil
}

// alarmIDFrom validates an alarm id request.
func alarmIDFrom(req *wrapperspb.Int64Value) (int64, error) {
	if req == nil {
		return 0, status.Error(codes.InvalidArgument, "request is required")
	}

	if req.GetValue() <= 0 {
		return 0, status.Error(codes.InvalidArgument, "alarm id must be positive")
	}

	return req.GetValue(), nil
}

// integerField reads a whole number from a struct request.
func integerField(req *structpb.Struct, name string, required bool) (int64, error) {
	value, ok := req.GetFields()[name]
	if !ok {
		if required {
			return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}

		return 0, nil
	}

	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok || number.NumberValue != math.Trunc(number.NumberValue) ||
		math.Abs(number.NumberValue) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a whole number", name)
	}

	return int64(number.NumberValue), nil
}

// toStatus maps service errors to gRPC status codes.
func toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidAlarm), errors.Is(err, schedule.ErrInvalidSnooze):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, schedule.ErrAlarmDisabled),
		errors.Is(err, delivery.ErrNoSession),
		errors.Is(err, delivery.ErrInvalidTransition),
		errors.Is(err, delivery.ErrSessionClosed),
		errors.Is(err, delivery.ErrSnoozeUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		logger.ErrorKV(ctx, "Request failed", "method", method, "error", err)

		return status.Error(codes.Internal, "unable to process request")
	}
}
