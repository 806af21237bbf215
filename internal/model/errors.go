package model

import "errors"

var (
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIdentity is returned when a refresh token identity is recorded twice.
	ErrDuplicateIdentity = errors.New("refresh token identity already recorded")

	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("refresh token revoked")

	ErrInvalidCredentials = errors.New("username or password is incorrect")
	ErrUserExists         = errors.New("username already taken")
	ErrSamePassword       = errors.New("password must be different")

	// ErrConfiguration marks startup configuration problems; the process must not serve.
	ErrConfiguration = errors.New("configuration error")
)
