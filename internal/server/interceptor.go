package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "x-request-id"

// UnaryInterceptor assigns a request ID (reusing the caller's when sent),
// puts a request-scoped logger in the context, recovers panics, maps
// domain errors to status codes and logs every call.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx, reqID := common.EnsureRequestID(ctx)
		log := logger.With("request_id", reqID, "method", info.FullMethod)
		ctx = common.WithLogger(ctx, log)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc.panic", "panic", fmt.Sprint(r))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
			code := status.Code(err)
			attrs := []any{"code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
			switch code {
			case codes.OK:
				log.Info("grpc.request", attrs...)
			case codes.Internal, codes.Unknown:
				log.Error("grpc.request", append(attrs, "error", err)...)
			default:
				log.Warn("grpc.request", append(attrs, "error", err)...)
			}
		}()

		resp, err = handler(ctx, req)
		return resp, common.ToGRPCError(err)
	}
}
