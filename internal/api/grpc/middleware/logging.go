package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/dtroode/authkeeper-server/internal/logger"
)

// Logging logs each gRPC call with its status and duration.
type Logging struct {
	logger *logger.Logger
}

func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC is the unary interceptor.
func (l *Logging) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	l.log(info.FullMethod, start, err)
	return resp, err
}

// HandleGRPCStream is the stream interceptor.
func (l *Logging) HandleGRPCStream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	l.log(info.FullMethod, start, err)
	return err
}

func (l *Logging) log(method string, start time.Time, err error) {
	// status.Code maps non-status errors to Unknown.
	code := status.Code(err)

	if err != nil {
		l.logger.Warn("gRPC request failed",
			"method", method,
			"status", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error())
		return
	}

	l.logger.Info("gRPC request completed",
		"method", method,
		"status", code.String(),
		"duration_ms", time.Since(start).Milliseconds())
}
