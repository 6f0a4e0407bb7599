package alarmclock

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/sayit-alarm/internal/logger"
)

// ActorMetadataKey carries the user@host of the caller.
const ActorMetadataKey = "x-alarm-actor"

// LoggingInterceptor attaches the method and the caller to the request logger and
// logs every completed call.
func LoggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	baseLogger := logger.FromContext(base)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		actor := "unknown"
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(ActorMetadataKey); len(values) > 0 {
				actor = values[0]
			}
		}

		ctx = logger.WithKV(logger.ToContext(ctx, baseLogger), "method", info.FullMethod, "actor", actor)
		started := time.Now()

		resp, err := handler(ctx, req)

		logger.InfoKV(ctx, "Request handled",
			"code", status.Code(err).String(),
			"duration", time.Since(started),
		)

		return resp, err
	}
}
