// Package handler implements the HTTP endpoints of the session service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
)

const (
	maxBodyBytes = 1 << 20

	msgValidationFailed = "Validation failed"
	msgInvalidBody      = "Invalid request body"
)

// SessionService is the part of service.Session the handlers use.
type SessionService interface {
	Login(ctx context.Context, params service.LoginParams) (service.LoginResult, error)
	RefreshAccessOnly(ctx context.Context, refreshToken string, client model.ClientInfo) (service.RefreshResult, error)
	RefreshRotate(ctx context.Context, refreshToken string, client model.ClientInfo) (service.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) (service.LogoutResult, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) (int64, error)
	Profile(ctx context.Context, userID uuid.UUID) (model.User, error)
}

// decodeBody reads a JSON body into dst and runs its validation rules.
// An empty body decodes as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst validation.Validatable) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apierror.NewErrValidation(msgInvalidBody, nil)
	}

	if err := dst.Validate(); err != nil {
		details := make(map[string]string)
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			for field, fieldErr := range fieldErrs {
				details[field] = fieldErr.Error()
			}
		}
		return apierror.NewErrValidation(msgValidationFailed, details)
	}
	return nil
}

// clientInfo reads the caller address set by chi's RealIP middleware.
func clientInfo(r *http.Request) model.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return model.ClientInfo{IPAddress: ip, UserAgent: r.UserAgent()}
}
