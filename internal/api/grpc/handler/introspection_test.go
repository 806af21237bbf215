package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
	"github.com/dtroode/authkeeper-server/internal/testutil"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, accessToken string, opts service.AuthenticateOptions) (model.Principal, error) {
	args := m.Called(ctx, accessToken, opts)
	return args.Get(0).(model.Principal), args.Error(1)
}

func TestIntrospection_Introspect(t *testing.T) {
	t.Parallel()

	principal := model.Principal{
		UserID:    uuid.New(),
		Role:      model.RoleAdmin,
		RTID:      "rtid-1",
		Username:  "abdallah",
		Email:     "abdallah@gmail.com",
		Issuer:    "authkeeper",
		IssuedAt:  time.Unix(1736499600, 0),
		ExpiresAt: time.Unix(1736500500, 0),
	}

	tests := []struct {
		name       string
		err        error
		wantActive bool
		wantCode   codes.Code
	}{
		{name: "active", wantActive: true},
		{name: "expired", err: apierror.NewErrUnauthorized(service.MsgTokenExpired, model.ErrTokenExpired)},
		{name: "revoked", err: apierror.NewErrForbidden(service.MsgTokenRevoked, model.ErrTokenRevoked)},
		{name: "unexpected", err: errors.New("ledger offline"), wantCode: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth := &mockAuthenticator{}
			auth.On("Authenticate", mock.Anything, "tok", service.AuthenticateOptions{}).Return(principal, tt.err)
			h := NewIntrospection(auth, testutil.MakeNoopLogger())

			got, err := h.Introspect(context.Background(), wrapperspb.String("tok"))
			if tt.wantCode != codes.OK {
				assert.Equal(t, tt.wantCode, status.Code(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)

			fields := got.AsMap()
			assert.Equal(t, tt.wantActive, fields["active"])
			if tt.wantActive {
				assert.Equal(t, principal.UserID.String(), fields["sub"])
				assert.Equal(t, "admin", fields["role"])
				assert.Equal(t, "rtid-1", fields["rtid"])
				assert.EqualValues(t, 1736499600, fields["iat"])
				assert.EqualValues(t, 1736500500, fields["exp"])
			} else {
				assert.Len(t, fields, 1)
			}
			auth.AssertExpectations(t)
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Parallel()

	err := handleError(apierror.NewErrNotFound("User not found"))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "User not found", st.Message())

	err = handleError(errors.New("dial tcp: refused"))
	st, _ = status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "refused")
}
