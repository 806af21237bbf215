package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
)

const (
	IntrospectionServiceName = "authkeeper.v1.Introspection"
	IntrospectMethod         = "/" + IntrospectionServiceName + "/Introspect"
)

// IntrospectionServer answers whether an access token is live.
type IntrospectionServer interface {
	Introspect(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

// IntrospectionServiceDesc describes the service for grpc.Server.RegisterService.
// Messages are well-known types, so no generated code is involved.
var IntrospectionServiceDesc = grpc.ServiceDesc{
	ServiceName: IntrospectionServiceName,
	HandlerType: (*IntrospectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Introspect",
			Handler:    introspectHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper/v1/introspection.proto",
}

func introspectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntrospectionServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IntrospectMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IntrospectionServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// IntrospectionClient calls IntrospectionServer over a connection.
type IntrospectionClient struct {
	cc grpc.ClientConnInterface
}

func NewIntrospectionClient(cc grpc.ClientConnInterface) *IntrospectionClient {
	return &IntrospectionClient{cc: cc}
}

func (c *IntrospectionClient) Introspect(ctx context.Context, accessToken string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IntrospectMethod, wrapperspb.String(accessToken), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Authenticator verifies access tokens against the revocation ledger.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, opts service.AuthenticateOptions) (model.Principal, error)
}

// Introspection implements IntrospectionServer on top of the session service.
type Introspection struct {
	auth   Authenticator
	logger *logger.Logger
}

func NewIntrospection(auth Authenticator, logger *logger.Logger) *Introspection {
	return &Introspection{auth: auth, logger: logger}
}

// Introspect reports {active:false} for any token the HTTP guard would deny.
func (h *Introspection) Introspect(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	principal, err := h.auth.Authenticate(ctx, in.GetValue(), service.AuthenticateOptions{})
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && (apiErr.Kind == apierror.KindUnauthorized || apiErr.Kind == apierror.KindForbidden) {
			h.logger.Debug("Introspection: token inactive",
				"reason", apiErr.Message)
			return inactive(), nil
		}
		h.logger.Error("Introspection: failed to authenticate token",
			"error", err.Error())
		return nil, handleError(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"active":   true,
		"sub":      principal.UserID.String(),
		"role":     string(principal.Role),
		"rtid":     principal.RTID,
		"username": principal.Username,
		"email":    principal.Email,
		"iss":      principal.Issuer,
		"iat":      principal.IssuedAt.Unix(),
		"exp":      principal.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return out, nil
}

func inactive() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"active": structpb.NewBoolValue(false),
	}}
}
