package middleware

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/apperr"
)

// Logging writes one line per call and turns panics and unmapped errors into
// Internal "internal error". It is the outermost interceptor.
func Logging(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic", zap.String("method", info.FullMethod), zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := codes.OK
			if err != nil {
				if s, ok := status.FromError(err); ok {
					code = s.Code()
				} else {
					log.Error("unmapped error", zap.String("method", info.FullMethod), zap.Error(err))
					err = status.Error(codes.Internal, "internal error")
					code = codes.Internal
				}
			}

			fields := []zap.Field{
				zap.String("method", info.FullMethod),
				zap.String("code", code.String()),
				zap.Duration("duration", time.Since(start)),
			}
			if p, ok := PrincipalFrom(ctx); ok {
				fields = append(fields, zap.String("clinic", p.ClinicID), zap.String("user", p.UserID))
			}
			switch code {
			case codes.OK:
				log.Info("rpc", fields...)
			case codes.Internal, codes.Unknown:
				var ae *apperr.Error
				if errors.As(err, &ae) && ae.Err != nil {
					fields = append(fields, zap.NamedError("cause", ae.Err))
				}
				log.Error("rpc", fields...)
			default:
				log.Warn("rpc", fields...)
			}
		}()
		return next(ctx, req)
	}
}

// Chain composes interceptors so the first one is outermost, the way
// grpc.ChainUnaryInterceptor does for a server.
func Chain(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		h := next
		for i := len(interceptors) - 1; i >= 0; i-- {
			ic, inner := interceptors[i], h
			h = func(ctx context.Context, req any) (any, error) {
				return ic(ctx, req, info, inner)
			}
		}
		return h(ctx, req)
	}
}

// Stack is the interceptor order shared by the gRPC server and the bridge.
func Stack(log *zap.Logger, rl *RateLimiter, secret string) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		Logging(log),
		RateLimit(rl),
		Auth(secret),
		Roles(),
	}
}
