package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore is the revocation ledger. Rows are never deleted;
// the only mutation is flipping revoked from false to true.
type RefreshTokenStore interface {
	// Create records a new active identity. A repeated JTI yields ErrDuplicateIdentity.
	Create(ctx context.Context, token RefreshToken) error
	// GetActiveByJTI returns the row only while it is not revoked, ErrNotFound otherwise.
	GetActiveByJTI(ctx context.Context, jti string) (RefreshToken, error)
	// GetByJTI returns the row in any state.
	GetByJTI(ctx context.Context, jti string) (RefreshToken, error)
	// RevokeByJTI flips a non-revoked row and reports how many rows changed.
	RevokeByJTI(ctx context.Context, jti string) (int64, error)
	// RevokeAllByUser flips every non-revoked row of the user.
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// Rotate revokes oldJTI and records next atomically. If oldJTI is no
	// longer active it returns ErrTokenRevoked and records nothing.
	Rotate(ctx context.Context, oldJTI string, next RefreshToken) error
}

// SessionState is derived from a ledger row and the current time.
type SessionState string

const (
	SessionActive  SessionState = "ACTIVE"
	SessionRevoked SessionState = "REVOKED"
	SessionExpired SessionState = "EXPIRED"
	SessionUnknown SessionState = "UNKNOWN"
)

// RefreshToken is a revocation ledger row.
type RefreshToken struct {
	JTI            string
	UserID         uuid.UUID
	Revoked        bool
	IssuedAt       time.Time
	ExpiresAt      time.Time
	IPAddress      string
	UserAgent      string
	RotatedFromJTI *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExpiresIn returns the expiry as epoch seconds.
func (t RefreshToken) ExpiresIn() int64 {
	return t.ExpiresAt.Unix()
}

// State derives the lifecycle state at now. Revocation wins over expiry.
func (t RefreshToken) State(now time.Time) SessionState {
	switch {
	case t.JTI == "":
		return SessionUnknown
	case t.Revoked:
		return SessionRevoked
	case !now.Before(t.ExpiresAt):
		return SessionExpired
	default:
		return SessionActive
	}
}
