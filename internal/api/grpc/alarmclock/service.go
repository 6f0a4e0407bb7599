package alarmclock

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sayit.alarmclock.v1.AlarmClock"

// Method names of the AlarmClock service.
const (
	MethodScheduleAlarm    = "ScheduleAlarm"
	MethodScheduleSnooze   = "ScheduleSnooze"
	MethodCancelAlarm      = "CancelAlarm"
	MethodNextTrigger      = "NextTrigger"
	MethodRequestChallenge = "RequestChallenge"
	MethodDismiss          = "Dismiss"
	MethodStartListening   = "StartListening"
	MethodStopChallenge    = "StopChallenge"
	MethodDisconnect       = "Disconnect"
)

// Snooze request fields.
const (
	FieldAlarmID = "alarm_id"
	FieldMinutes = "minutes"
)

// AlarmClockServer is the server API of the AlarmClock service.
type AlarmClockServer interface {
	ScheduleAlarm(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	ScheduleSnooze(ctx context.Context, req *structpb.Struct) (*timestamppb.Timestamp, error)
	CancelAlarm(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	NextTrigger(ctx context.Context, req *wrapperspb.Int64Value) (*timestamppb.Timestamp, error)
	RequestChallenge(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	Dismiss(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	StartListening(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	StopChallenge(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	Disconnect(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
}

// RegisterAlarmClockServer registers srv on the gRPC server.
func RegisterAlarmClockServer(registrar grpc.ServiceRegistrar, srv AlarmClockServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

//nolint:gochecknoglobals // grpc keeps a pointer to the descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmClockServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodScheduleAlarm, Handler: unaryHandler(MethodScheduleAlarm, AlarmClockServer.ScheduleAlarm)},
		{MethodName: MethodScheduleSnooze, Handler: unaryHandler(MethodScheduleSnooze, AlarmClockServer.ScheduleSnooze)},
		{MethodName: MethodCancelAlarm, Handler: unaryHandler(MethodCancelAlarm, AlarmClockServer.CancelAlarm)},
		{MethodName: MethodNextTrigger, Handler: unaryHandler(MethodNextTrigger, AlarmClockServer.NextTrigger)},
		{
			MethodName: MethodRequestChallenge,
			Handler:    unaryHandler(MethodRequestChallenge, AlarmClockServer.RequestChallenge),
		},
		{MethodName: MethodDismiss, Handler: unaryHandler(MethodDismiss, AlarmClockServer.Dismiss)},
		{
			MethodName: MethodStartListening,
			Handler:    unaryHandler(MethodStartListening, AlarmClockServer.StartListening),
		},
		{
			MethodName: MethodStopChallenge,
			Handler:    unaryHandler(MethodStopChallenge, AlarmClockServer.StopChallenge),
		},
		{MethodName: MethodDisconnect, Handler: unaryHandler(MethodDisconnect, AlarmClockServer.Disconnect)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sayit/alarmclock/v1/alarmclock.proto",
}

// fullMethod returns the /service/method path of a method.
func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler decodes the request, runs the interceptor chain and calls the method.
func unaryHandler[Req, Resp any](
	method string,
	call func(AlarmClockServer, context.Context, *Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(AlarmClockServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}

		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*Req)

			return call(server, ctx, typed)
		})
	}
}

// AlarmClockClient is the client API of the AlarmClock service.
type AlarmClockClient interface {
	ScheduleAlarm(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	ScheduleSnooze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*timestamppb.Timestamp, error)
	CancelAlarm(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	NextTrigger(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*timestamppb.Timestamp, error)
	RequestChallenge(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Dismiss(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	StartListening(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	StopChallenge(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Disconnect(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type alarmClockClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmClockClient creates a client over the connection.
//
//nolint:ireturn // Mirrors the shape of generated gRPC clients.
func NewAlarmClockClient(cc grpc.ClientConnInterface) AlarmClockClient {
	return &alarmClockClient{cc: cc}
}

func (c *alarmClockClient) ScheduleAlarm(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, MethodScheduleAlarm, in, opts)
}

func (c *alarmClockClient) ScheduleSnooze(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*timestamppb.Timestamp, error) {
	return invoke[timestamppb.Timestamp](ctx, c.cc, MethodScheduleSnooze, in, opts)
}

func (c *alarmClockClient) CancelAlarm(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodCancelAlarm, in, opts)
}

func (c *alarmClockClient) NextTrigger(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*timestamppb.Timestamp, error) {
	return invoke[timestamppb.Timestamp](ctx, c.cc, MethodNextTrigger, in, opts)
}

func (c *alarmClockClient) RequestChallenge(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodRequestChallenge, in, opts)
}

func (c *alarmClockClient) Dismiss(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodDismiss, in, opts)
}

func (c *alarmClockClient) StartListening(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodStartListening, in, opts)
}

func (c *alarmClockClient) StopChallenge(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodStopChallenge, in, opts)
}

func (c *alarmClockClient) Disconnect(
	ctx context.Context,
	in *wrapperspb.Int64Value,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, MethodDisconnect, in, opts)
}

func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
