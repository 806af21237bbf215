package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

// RefreshTokenRepository is an in-process revocation ledger. A single mutex
// makes every revoke a compare-and-swap on the row.
type RefreshTokenRepository struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{rows: make(map[string]model.RefreshToken)}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insert(token)
}

func (r *RefreshTokenRepository) GetActiveByJTI(_ context.Context, jti string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[jti]
	if !ok || row.Revoked {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return row, nil
}

func (r *RefreshTokenRepository) GetByJTI(_ context.Context, jti string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[jti]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return row, nil
}

func (r *RefreshTokenRepository) RevokeByJTI(_ context.Context, jti string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.revoke(jti) {
		return 1, nil
	}
	return 0, nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for jti, row := range r.rows {
		if row.UserID == userID && r.revoke(jti) {
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) Rotate(_ context.Context, oldJTI string, next model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[next.JTI]; exists {
		return model.ErrDuplicateIdentity
	}
	if !r.revoke(oldJTI) {
		return model.ErrTokenRevoked
	}

	return r.insert(next)
}

// ListByUser returns every row of the user, revoked included.
func (r *RefreshTokenRepository) ListByUser(userID uuid.UUID) []model.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.RefreshToken
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out
}

func (r *RefreshTokenRepository) insert(token model.RefreshToken) error {
	if _, exists := r.rows[token.JTI]; exists {
		return model.ErrDuplicateIdentity
	}
	now := time.Now().UTC()
	token.Revoked = false
	token.CreatedAt, token.UpdatedAt = now, now
	r.rows[token.JTI] = token
	return nil
}

func (r *RefreshTokenRepository) revoke(jti string) bool {
	row, ok := r.rows[jti]
	if !ok || row.Revoked {
		return false
	}
	row.Revoked = true
	row.UpdatedAt = time.Now().UTC()
	r.rows[jti] = row
	return true
}
