// file: repository/memory_user_repository.go

package repository

import (
	"context"
	"go-auth-api/model"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserRepository is an in-process IUserRepository used by the
// "memory" store driver. All writes are serialized by one mutex, which
// makes RotateRefreshToken a true compare-and-set.
type MemoryUserRepository struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*model.User
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	now        func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[uuid.UUID]*model.User),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		now:        time.Now,
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		c.RefreshToken = &token
	}
	if u.RefreshTokenExpires != nil {
		expires := *u.RefreshTokenExpires
		c.RefreshTokenExpires = &expires
	}
	if u.LastLogin != nil {
		last := *u.LastLogin
		c.LastLogin = &last
	}
	return &c
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return ErrDuplicateUsername
	}

	now := r.now()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *MemoryUserRepository) FindConflict(ctx context.Context, email, username string, excludeID uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byEmail[email]; ok && email != "" && id != excludeID {
		return cloneUser(r.users[id]), nil
	}
	if id, ok := r.byUsername[username]; ok && username != "" && id != excludeID {
		return cloneUser(r.users[id]), nil
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Email != nil {
		if owner, taken := r.byEmail[*update.Email]; taken && owner != id {
			return nil, ErrDuplicateEmail
		}
	}
	if update.Username != nil {
		if owner, taken := r.byUsername[*update.Username]; taken && owner != id {
			return nil, ErrDuplicateUsername
		}
	}

	if update.Email != nil {
		delete(r.byEmail, u.Email)
		u.Email = *update.Email
		r.byEmail[u.Email] = id
	}
	if update.Username != nil {
		delete(r.byUsername, u.Username)
		u.Username = *update.Username
		r.byUsername[u.Username] = id
	}
	u.UpdatedAt = r.now()
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.mutate(ctx, id, func(u *model.User) error {
		u.PasswordHash = passwordHash
		u.RefreshToken = nil
		u.RefreshTokenExpires = nil
		return nil
	})
}

func (r *MemoryUserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expires time.Time, lastLogin *time.Time) error {
	return r.mutate(ctx, id, func(u *model.User) error {
		u.RefreshToken = &token
		u.RefreshTokenExpires = &expires
		if lastLogin != nil {
			last := *lastLogin
			u.LastLogin = &last
		}
		return nil
	})
}

func (r *MemoryUserRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string, expires, now time.Time) error {
	err := r.mutate(ctx, id, func(u *model.User) error {
		if u.RefreshToken == nil || *u.RefreshToken != current ||
			u.RefreshTokenExpires == nil || !u.RefreshTokenExpires.After(now) {
			return ErrRefreshTokenMismatch
		}
		u.RefreshToken = &next
		u.RefreshTokenExpires = &expires
		return nil
	})
	if err == ErrNotFound {
		return ErrRefreshTokenMismatch
	}
	return err
}

func (r *MemoryUserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.mutate(ctx, id, func(u *model.User) error {
		u.RefreshToken = nil
		u.RefreshTokenExpires = nil
		return nil
	})
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*model.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*model.User, 0, end-offset)
	for _, u := range all[offset:end] {
		page = append(page, cloneUser(u))
	}
	return page, total, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.byUsername, u.Username)
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.mutate(ctx, id, func(u *model.User) error {
		u.Role = role
		return nil
	})
}

func (r *MemoryUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.mutate(ctx, id, func(u *model.User) error {
		u.IsActive = active
		if !active {
			u.RefreshToken = nil
			u.RefreshTokenExpires = nil
		}
		return nil
	})
}

// mutate applies fn to the stored user under the lock. fn returning an
// error leaves the record untouched.
func (r *MemoryUserRepository) mutate(ctx context.Context, id uuid.UUID, fn func(u *model.User) error) error {
	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	updated := cloneUser(stored)
	if err := fn(updated); err != nil {
		return err
	}
	updated.UpdatedAt = r.now()
	r.users[id] = updated
	return nil
}
