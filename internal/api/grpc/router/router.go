package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/authkeeper-server/internal/api/grpc/handler"
	"github.com/dtroode/authkeeper-server/internal/api/grpc/middleware"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

// Router builds the introspection gRPC server.
type Router struct {
	auth       handler.Authenticator
	serviceKey string
	logger     *logger.Logger
}

func New(auth handler.Authenticator, serviceKey string, logger *logger.Logger) *Router {
	return &Router{auth: auth, serviceKey: serviceKey, logger: logger}
}

// authSkip selects every method except health checks for service key auth.
func authSkip(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+healthpb.Health_ServiceDesc.ServiceName+"/")
}

// Register returns a server with introspection, health and reflection.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	serviceKey := middleware.NewServiceKey(r.serviceKey, r.logger)
	recoveryOpt := middleware.RecoveryOption(r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(serviceKey.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			logging.HandleGRPCStream,
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(serviceKey.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
	)

	s.RegisterService(&handler.IntrospectionServiceDesc, handler.NewIntrospection(r.auth, r.logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.IntrospectionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s)

	return s
}
