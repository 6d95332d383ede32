package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/sso-users/internal/common"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	order   []string
}

// NewMemoryRepository creates a process-local user repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func clone(u *User) *User {
	c := *u
	if u.Roles != nil {
		c.Roles = append([]string{}, u.Roles...)
	}
	return &c
}

func (r *memoryRepository) CreateUser(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return fmt.Errorf("email %q: %w", user.Email, common.ErrConflict)
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = clone(user)
	r.byEmail[user.Email] = user.ID
	r.order = append(r.order, user.ID)
	return nil
}

func (r *memoryRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *memoryRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (r *memoryRepository) ListUsers(ctx context.Context, offset, limit int) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := []*User{}
	if offset < 0 || limit <= 0 || offset >= len(r.order) {
		return users, nil
	}
	end := len(r.order)
	if limit < end-offset {
		end = offset + limit
	}
	for _, id := range r.order[offset:end] {
		users = append(users, clone(r.byID[id]))
	}
	return users, nil
}

func (r *memoryRepository) CountUsers(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.order)), nil
}

func (r *memoryRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if update.Email != nil && *update.Email != u.Email {
		if _, taken := r.byEmail[*update.Email]; taken {
			return nil, fmt.Errorf("email %q: %w", *update.Email, common.ErrConflict)
		}
		delete(r.byEmail, u.Email)
		r.byEmail[*update.Email] = id
	}

	update.apply(u)
	u.UpdatedAt = time.Now().UTC()
	return clone(u), nil
}

func (r *memoryRepository) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
