// Package apierror defines the errors surfaced to API clients and their
// mapping onto HTTP statuses and gRPC codes.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// Kind classifies an APIError.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindConfiguration      Kind = "ConfigurationError"
	KindDatabase           Kind = "DatabaseError"
	KindInternal           Kind = "Internal"
)

// APIError is an error safe to show to clients. Err keeps the cause for
// errors.Is and logging and is never serialized.
type APIError struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind onto an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the kind onto a gRPC status code.
func (e *APIError) GRPCCode() codes.Code {
	switch e.Kind {
	case KindValidation:
		return codes.InvalidArgument
	case KindInvalidCredentials, KindUnauthorized:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

func NewErrValidation(message string, details map[string]string) *APIError {
	return &APIError{Kind: KindValidation, Message: message, Details: details}
}

// NewErrInvalidCredentials never says which of username or password was wrong.
func NewErrInvalidCredentials() *APIError {
	return &APIError{Kind: KindInvalidCredentials, Message: model.ErrInvalidCredentials.Error(), Err: model.ErrInvalidCredentials}
}

func NewErrUnauthorized(message string, cause error) *APIError {
	return &APIError{Kind: KindUnauthorized, Message: message, Err: cause}
}

func NewErrForbidden(message string, cause error) *APIError {
	return &APIError{Kind: KindForbidden, Message: message, Err: cause}
}

func NewErrNotFound(message string) *APIError {
	return &APIError{Kind: KindNotFound, Message: message, Err: model.ErrNotFound}
}

func NewErrDatabase(cause error) *APIError {
	return &APIError{Kind: KindDatabase, Message: "Internal Server Error", Err: cause}
}

func NewErrInternal(cause error) *APIError {
	return &APIError{Kind: KindInternal, Message: "Internal Server Error", Err: cause}
}

// From returns err as an APIError. Errors that are not already API errors
// become Internal so their text never reaches clients.
func From(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, model.ErrConfiguration) {
		return &APIError{Kind: KindConfiguration, Message: "Internal Server Error", Err: err}
	}
	return NewErrInternal(err)
}
