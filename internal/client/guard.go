package client

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/token"
)

// Action tells the caller where to go next.
type Action int

const (
	ActionProceed Action = iota
	ActionRedirectLogin
	ActionRedirectHome
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRedirectLogin:
		return "redirect-login"
	case ActionRedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a guard check.
type Decision struct {
	Action Action
	Reason string
}

// Refresher renews the access token.
type Refresher interface {
	Refresh(ctx context.Context, rotate bool) error
}

// Guard runs before protected and login-only actions.
type Guard struct {
	store     Store
	refresher Refresher
	now       func() time.Time
	logger    *logger.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardClock replaces time.Now.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

func NewGuard(store Store, refresher Refresher, logger *logger.Logger, opts ...GuardOption) *Guard {
	g := &Guard{store: store, refresher: refresher, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check admits a protected action. A held access token is only trusted
// for its expiry; the server still verifies it.
func (g *Guard) Check(ctx context.Context) Decision {
	state, err := g.store.Load()
	if err != nil {
		g.logger.Warn("Client guard: unreadable session state",
			"error", err.Error())
		return g.toLogin("session state unreadable")
	}

	if state.RefreshToken == "" {
		return g.toLogin("no refresh token")
	}

	if g.accessUsable(state.AccessToken) {
		return Decision{Action: ActionProceed, Reason: "access token valid"}
	}

	if err := g.refresher.Refresh(ctx, false); err != nil {
		g.logger.Info("Client guard: refresh failed",
			"error", err.Error())
		return g.toLogin("refresh failed")
	}
	return Decision{Action: ActionProceed, Reason: "access token refreshed"}
}

// CheckGuest guards login-only actions: a held, unexpired refresh token
// sends the user home instead.
func (g *Guard) CheckGuest(_ context.Context) Decision {
	state, err := g.store.Load()
	if err != nil || state.RefreshToken == "" {
		return Decision{Action: ActionProceed, Reason: "no session"}
	}
	if !state.RefreshExpiresAt.IsZero() && !g.now().Before(state.RefreshExpiresAt) {
		return Decision{Action: ActionProceed, Reason: "session expired"}
	}
	return Decision{Action: ActionRedirectHome, Reason: "already logged in"}
}

func (g *Guard) toLogin(reason string) Decision {
	if err := g.store.Clear(); err != nil {
		g.logger.Warn("Client guard: failed to clear session state",
			"error", err.Error())
	}
	return Decision{Action: ActionRedirectLogin, Reason: reason}
}

// accessUsable decodes the token without verifying it. Undecodable tokens
// count as expired.
func (g *Guard) accessUsable(accessToken string) bool {
	if accessToken == "" {
		return false
	}

	claims := &token.AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return g.now().Before(claims.ExpiresAt.Time)
}
