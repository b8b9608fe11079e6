// Package memory is a process-local model.UserStore for local runs and tests.
package memory

import (
	"context"
	"crypto/subtle"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository keeps users in a map guarded by one mutex, so every write
// is linearizable.
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]model.User),
		now:   time.Now,
	}
}

// Ping always succeeds; it lets the in-memory store stand in for a database in health checks.
func (r *UserRepository) Ping(context.Context) error {
	return nil
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return model.User{}, model.ErrConflict
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return model.User{}, model.ErrConflict
		}
	}

	user = clone(user)
	r.users[user.ID] = user
	return clone(user), nil
}

func (r *UserRepository) Exists(_ context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) FindByLogin(_ context.Context, usernameOrEmail string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			return clone(u), nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, clone(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) SetRefreshToken(_ context.Context, id uuid.UUID, tokenHash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.RefreshTokenHash = copyString(tokenHash)
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func (r *UserRepository) RotateRefreshToken(_ context.Context, id uuid.UUID, presentedHash, nextHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if u.RefreshTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*u.RefreshTokenHash), []byte(presentedHash)) != 1 {
		return model.ErrTokenMismatch
	}
	u.RefreshTokenHash = &nextHash
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func (r *UserRepository) GetPasswordHash(_ context.Context, id uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return "", model.ErrNotFound
	}
	return u.PasswordHash, nil
}

func (r *UserRepository) SetPasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.RefreshTokenHash = nil
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func clone(u model.User) model.User {
	u.AvatarURL = copyString(u.AvatarURL)
	u.CoverImageURL = copyString(u.CoverImageURL)
	u.RefreshTokenHash = copyString(u.RefreshTokenHash)
	return u
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
