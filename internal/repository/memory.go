package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/sharebite/auth-service/internal/models"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// username and email uniqueness as the database indexes and is used for
// local development and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

// NewMemoryUserRepository creates an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return &user, nil
}

func (r *MemoryUserRepository) FindByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	return r.findFirst(func(u models.User) bool {
		return u.Email == email || u.Username == username
	}, "login", email+"|"+username)
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return oops.Code("USER_DUPLICATE").With("id", user.ID).Wrap(ErrDuplicate)
	}
	if err := r.checkUnique("", user.Username, user.Email); err != nil {
		return err
	}

	now := r.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, update UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if update.IsEmpty() {
		return &user, nil
	}

	username, email := user.Username, user.Email
	if update.Username != nil {
		username = *update.Username
	}
	if update.Email != nil {
		email = *update.Email
	}
	if err := r.checkUnique(id, username, email); err != nil {
		return nil, err
	}

	user.Username = username
	user.Email = email
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.About != nil {
		user.About = *update.About
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	user.UpdatedAt = r.now()
	r.users[id] = user
	return &user, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = r.now()
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *MemoryUserRepository) findFirst(match func(models.User) bool, key, value string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []models.User
	for _, u := range r.users {
		if match(u) {
			found = append(found, u)
		}
	}
	if len(found) == 0 {
		return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(ErrNotFound)
	}

	// Oldest first, like the ORDER BY created_at of the SQL repository.
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return &found[0], nil
}

// checkUnique must be called with the write lock held.
func (r *MemoryUserRepository) checkUnique(selfID, username, email string) error {
	for id, u := range r.users {
		if id == selfID {
			continue
		}
		if u.Username == username {
			return oops.Code("USER_DUPLICATE").With("constraint", "users_username_key").Wrap(ErrDuplicate)
		}
		if u.Email == email {
			return oops.Code("USER_DUPLICATE").With("constraint", "users_email_key").Wrap(ErrDuplicate)
		}
	}
	return nil
}
