package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/dtroode/authkeeper-server/internal/model"
)

func TestAPIError_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   codes.Code
	}{
		{name: "validation", err: NewErrValidation("bad body", nil), wantStatus: http.StatusBadRequest, wantCode: codes.InvalidArgument},
		{name: "invalid credentials", err: NewErrInvalidCredentials(), wantStatus: http.StatusUnauthorized, wantCode: codes.Unauthenticated},
		{name: "unauthorized", err: NewErrUnauthorized("expired", model.ErrTokenExpired), wantStatus: http.StatusUnauthorized, wantCode: codes.Unauthenticated},
		{name: "forbidden", err: NewErrForbidden("revoked", model.ErrTokenRevoked), wantStatus: http.StatusForbidden, wantCode: codes.PermissionDenied},
		{name: "not found", err: NewErrNotFound("user not found"), wantStatus: http.StatusNotFound, wantCode: codes.NotFound},
		{name: "database", err: NewErrDatabase(errors.New("conn refused")), wantStatus: http.StatusInternalServerError, wantCode: codes.Internal},
		{name: "internal", err: NewErrInternal(errors.New("boom")), wantStatus: http.StatusInternalServerError, wantCode: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
			assert.Equal(t, tt.wantCode, tt.err.GRPCCode())
		})
	}
}

func TestAPIError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("refresh: %w", NewErrForbidden("revoked", model.ErrTokenRevoked))

	assert.ErrorIs(t, err, model.ErrTokenRevoked)
	assert.ErrorIs(t, NewErrInvalidCredentials(), model.ErrInvalidCredentials)
	assert.Equal(t, "username or password is incorrect", NewErrInvalidCredentials().Message)
}

func TestFrom(t *testing.T) {
	t.Parallel()

	forbidden := NewErrForbidden("revoked", nil)
	assert.Same(t, forbidden, From(fmt.Errorf("wrapped: %w", forbidden)))

	internal := From(errors.New("pq: connection reset"))
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, "Internal Server Error", internal.Message)

	cfg := From(fmt.Errorf("codec: %w", model.ErrConfiguration))
	assert.Equal(t, KindConfiguration, cfg.Kind)
	assert.Equal(t, http.StatusInternalServerError, cfg.HTTPStatus())
}
