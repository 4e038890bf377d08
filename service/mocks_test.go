// file: service/mocks_test.go

package service

import (
	"context"
	"go-auth-api/model"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}
func (m *mockUserRepo) FindConflict(ctx context.Context, email, username string, excludeID uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, email, username, excludeID)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.User, error) {
	args := m.Called(ctx, id, update)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}
func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}
func (m *mockUserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expires time.Time, lastLogin *time.Time) error {
	args := m.Called(ctx, id, token, expires, lastLogin)
	return args.Error(0)
}
func (m *mockUserRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string, expires, now time.Time) error {
	args := m.Called(ctx, id, current, next, expires, now)
	return args.Error(0)
}
func (m *mockUserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Int(1), args.Error(2)
}
func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *mockUserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}
func (m *mockUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}
