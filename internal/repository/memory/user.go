// Package memory provides in-process stores with the same semantics as the
// Postgres repositories, for DATABASE_DRIVER=memory and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]model.User
	byUsername map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[uuid.UUID]model.User),
		byUsername: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.live(id)
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.live(id)
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return model.User{}, model.ErrUserExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID
	return user, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.live(id)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.byID[id] = user
	return nil
}

// live must be called with the lock held.
func (r *UserRepository) live(id uuid.UUID) (model.User, error) {
	user, ok := r.byID[id]
	if !ok || user.IsDeleted() {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}
