package context

import (
	"context"

	"github.com/dtroode/authkeeper-server/internal/model"
)

type principalKey struct{}

// Manager keeps the principal admitted by the guard in the request context.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{}
}

// SetPrincipalToContext returns a child context carrying principal.
func (m *Manager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipalFromContext returns the principal and whether the guard set one.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(model.Principal)
	return principal, ok
}
