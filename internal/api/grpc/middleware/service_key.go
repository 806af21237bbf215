package middleware

import (
	"context"
	"crypto/subtle"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/authkeeper-server/internal/logger"
)

// ServiceKey admits callers presenting "authorization: Bearer <key>".
type ServiceKey struct {
	key    []byte
	logger *logger.Logger
}

func NewServiceKey(key string, logger *logger.Logger) *ServiceKey {
	return &ServiceKey{key: []byte(key), logger: logger}
}

// AuthFunc is an auth.AuthFunc for the go-grpc-middleware auth interceptors.
func (m *ServiceKey) AuthFunc(ctx context.Context) (context.Context, error) {
	presented, err := auth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, err
	}

	if len(m.key) == 0 || subtle.ConstantTimeCompare([]byte(presented), m.key) != 1 {
		m.logger.Warn("gRPC auth: invalid service key presented")
		return nil, status.Error(codes.Unauthenticated, "invalid service key")
	}
	return ctx, nil
}
