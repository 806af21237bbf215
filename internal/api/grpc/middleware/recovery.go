package middleware

import (
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/authkeeper-server/internal/logger"
)

// RecoveryOption logs handler panics and answers them with codes.Internal.
func RecoveryOption(logger *logger.Logger) recovery.Option {
	return recovery.WithRecoveryHandler(func(p any) error {
		logger.Error("panic recovered in gRPC handler",
			"error", fmt.Sprint(p))
		return status.Error(codes.Internal, "Internal Server Error")
	})
}
