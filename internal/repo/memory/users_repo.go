package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/sosalert/internal/domain/user"
)

// UsersRepo is an in-process credential store for local runs and tests.
// Email uniqueness is enforced under the write lock.
type UsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) Insert(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return user.User{}, user.ErrEmailTaken
	}

	stored := clone(u)
	r.byID[u.ID] = stored
	r.byEmail[u.Email] = u.ID

	return clone(stored), nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func clone(u user.User) user.User {
	cs := make([]user.Contact, len(u.EmergencyContacts))
	copy(cs, u.EmergencyContacts)
	u.EmergencyContacts = cs
	return u
}
