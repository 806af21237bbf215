package model

import (
	"context"

	"github.com/google/uuid"
)

// ReplayTracker counts presentations of refresh tokens that were already
// revoked, a signal of possible token theft.
type ReplayTracker interface {
	TrackReuse(ctx context.Context, userID uuid.UUID, jti string) (int64, error)
}

// Outcome labels recorded by a Recorder.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalid            = "invalid"
	OutcomeExpired            = "expired"
	OutcomeRevoked            = "revoked"
	OutcomeUnknown            = "unknown"
	OutcomeReuse              = "reuse"
	OutcomeError              = "error"
)

// Recorder receives session lifecycle outcomes for metrics.
type Recorder interface {
	RecordLogin(ctx context.Context, outcome string)
	RecordRefresh(ctx context.Context, grant, outcome string)
	RecordGuard(ctx context.Context, outcome string)
}
