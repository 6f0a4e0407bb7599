package alarmclock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/sayit-alarm/internal/logger"
)

// TestLoggingInterceptor logs the caller taken from the request metadata.
func TestLoggingInterceptor(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	base := logger.ToContext(context.Background(), zap.New(core).Sugar())

	interceptor := LoggingInterceptor(base)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ActorMetadataKey, "oleg@kitchen"))
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod(MethodDismiss)}

	resp, err := interceptor(ctx, "request", info, func(context.Context, any) (any, error) {
		return "response", nil
	})
	require.NoError(t, err)
	require.Equal(t, "response", resp)

	entries := logs.FilterMessage("Request handled").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, "oleg@kitchen", fields["actor"])
	require.Equal(t, "/sayit.alarmclock.v1.AlarmClock/Dismiss", fields["method"])
	require.Equal(t, "OK", fields["code"])
}
