package model

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated caller admitted by a guard.
type Principal struct {
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

// ClientInfo is the request origin recorded in the ledger.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}
