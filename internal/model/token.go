package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenManager issues and verifies access and refresh tokens.
// Parse methods wrap ErrTokenInvalid on any failure and additionally
// ErrTokenExpired when only the expiry check failed. Decode methods
// verify the signature and claims but ignore expiry.
type TokenManager interface {
	IssueAccessToken(params AccessTokenParams) (string, error)
	IssueRefreshToken(userID uuid.UUID) (IssuedRefreshToken, error)
	ParseAccessToken(token string) (AccessPayload, error)
	ParseRefreshToken(token string) (RefreshPayload, error)
	DecodeAccessToken(token string) (AccessPayload, error)
	DecodeRefreshToken(token string) (RefreshPayload, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AccessTokenParams are the claims of a new access token.
type AccessTokenParams struct {
	UserID   uuid.UUID
	Role     Role
	RTID     string
	Username string
	Email    string
	Avatar   string
}

// AccessPayload is a verified access token.
type AccessPayload struct {
	UserID    uuid.UUID
	Role      Role
	RTID      string
	Username  string
	Email     string
	Avatar    string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedRefreshToken is a signed refresh token with its identity.
type IssuedRefreshToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshPayload is a verified refresh token.
type RefreshPayload struct {
	UserID    uuid.UUID
	JTI       string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
