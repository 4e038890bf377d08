package service

import (
	"context"
	"errors"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// UserService handles admin user management.
type UserService struct {
	userRepo     repository.IUserRepository
	storeTimeout time.Duration
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository, storeTimeout time.Duration) *UserService {
	return &UserService{userRepo: userRepo, storeTimeout: storeTimeout}
}

func (s *UserService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// ListUsers returns one page of users, newest first. Out-of-range page and
// limit values are clamped.
func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*model.UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	users, total, err := s.userRepo.List(storeCtx, limit, (page-1)*limit)
	if err != nil {
		return nil, storeError(err)
	}

	result := &model.UserPage{
		Users: make([]model.PublicUser, 0, len(users)),
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}
	for _, u := range users {
		result.Users = append(result.Users, u.Public())
	}
	return result, nil
}

// DeleteUser removes targetID. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrCannotDeleteSelf
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.userRepo.Delete(storeCtx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"deleted_user_id": targetID,
		"deleted_by":      actorID,
	}).Info("User deleted")
	return nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(ctx context.Context, userID uuid.UUID, newRole model.Role) error {
	if !newRole.Valid() {
		return ErrInvalidRole
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.userRepo.UpdateRole(storeCtx, userID, newRole); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"role":    newRole,
	}).Info("User role updated")
	return nil
}

// SetUserActive activates or deactivates targetID. Deactivation revokes the
// user's refresh token; outstanding access tokens are rejected by the
// authenticator on their next use.
func (s *UserService) SetUserActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) error {
	if !active && actorID == targetID {
		return ErrCannotDeactivateSelf
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.userRepo.SetActive(storeCtx, targetID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":    targetID,
		"is_active":  active,
		"changed_by": actorID,
	}).Info("User status updated")
	return nil
}
