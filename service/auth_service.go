package service

import (
	"context"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthSettings are the session policy knobs of AuthService.
type AuthSettings struct {
	// RefreshSessionTTL is how long a stored refresh token stays redeemable.
	RefreshSessionTTL   time.Duration
	StoreTimeout        time.Duration
	AllowRoleOnRegister bool
}

// AuthService runs the register/login/refresh/logout state machine. It is
// stateless; the user repository is the single source of session truth.
type AuthService struct {
	users    repository.IUserRepository
	hasher   *PasswordHasher
	tokens   *TokenManager
	settings AuthSettings
	now      func() time.Time
}

func NewAuthService(users repository.IUserRepository, hasher *PasswordHasher, tokens *TokenManager, settings AuthSettings) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		settings: settings,
		now:      time.Now,
	}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.StoreTimeout)
}

// Register creates an active user and opens its first session.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error) {
	email := NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role != model.RoleStudent && !s.settings.AllowRoleOnRegister {
		return nil, ErrRoleNotAllowed
	}

	if err := s.checkConflict(ctx, email, username, uuid.Nil, ErrEmailTaken); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	err = s.users.Create(storeCtx, user)
	cancel()
	if err != nil {
		return nil, conflictError(err, ErrEmailTaken)
	}

	result, err := s.startSession(ctx, user, nil)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered successfully")
	return result, nil
}

// Login verifies credentials and replaces any previous session. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AuthResult, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	user, err := s.users.GetByEmail(storeCtx, NormalizeEmail(email))
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.CheckDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	if !s.hasher.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehashPassword(ctx, user, password)
	}

	now := s.now()
	result, err := s.startSession(ctx, user, &now)
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("user_id", user.ID).Info("User logged in successfully")
	return result, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// still be the one on record; rotation is a compare-and-set in the store, so
// of two concurrent refreshes with the same token only one succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	identity, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	user, err := s.users.GetByID(storeCtx, identity.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeError(err)
	}
	// An inactive account reads as a revoked session.
	if !user.IsActive {
		logger.Log.WithField("user_id", user.ID).Warn("Refresh attempted on deactivated account")
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	storeCtx, cancel = s.storeCtx(ctx)
	err = s.users.RotateRefreshToken(storeCtx, user.ID, refreshToken, pair.RefreshToken, now.Add(s.settings.RefreshSessionTTL), now)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenMismatch) {
			logger.Log.WithField("user_id", user.ID).Warn("Superseded or revoked refresh token presented")
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeError(err)
	}

	logger.Log.WithField("user_id", user.ID).Info("Token refreshed")
	return pair, nil
}

// Logout drops the stored refresh token. Access tokens already issued stay
// valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.users.ClearRefreshToken(storeCtx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	logger.Log.WithField("user_id", userID).Info("User logged out")
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*model.PublicUser, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetByID(storeCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	public := user.Public()
	return &public, nil
}

// UpdateProfile changes username and/or email. Absent fields are kept.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (*model.PublicUser, error) {
	update := model.ProfileUpdate{}
	var email, username string
	if req.Email != nil {
		email = NormalizeEmail(*req.Email)
		update.Email = &email
	}
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		update.Username = &username
	}
	if update.Email == nil && update.Username == nil {
		return s.Profile(ctx, userID)
	}

	if err := s.checkConflict(ctx, email, username, userID, ErrEmailInUse); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	user, err := s.users.UpdateProfile(storeCtx, userID, update)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, conflictError(err, ErrEmailInUse)
	}

	logger.Log.WithField("user_id", userID).Info("Profile updated")
	public := user.Public()
	return &public, nil
}

// ChangePassword replaces the password hash. The stored refresh token is
// dropped with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	storeCtx, cancel := s.storeCtx(ctx)
	user, err := s.users.GetByID(storeCtx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	if !s.hasher.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("could not hash password: %w", err)
	}

	storeCtx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdatePassword(storeCtx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError(err)
	}

	logger.Log.WithField("user_id", userID).Info("Password changed")
	return nil
}

// rehashPassword stores password at the current cost. It runs before the
// session is opened because UpdatePassword drops the refresh token.
func (s *AuthService) rehashPassword(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("Password rehash failed")
		return
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdatePassword(storeCtx, user.ID, hash); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("Password rehash failed")
		return
	}
	user.PasswordHash = hash
}

// startSession issues a pair and overwrites the stored refresh token.
func (s *AuthService) startSession(ctx context.Context, user *model.User, lastLogin *time.Time) (*model.AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.settings.RefreshSessionTTL)
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.SetRefreshToken(storeCtx, user.ID, pair.RefreshToken, expires, lastLogin); err != nil {
		return nil, storeError(err)
	}

	user.RefreshToken = &pair.RefreshToken
	user.RefreshTokenExpires = &expires
	if lastLogin != nil {
		user.LastLogin = lastLogin
	}
	return &model.AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// checkConflict fails with emailErr or ErrUsernameTaken when another user
// already holds email or username.
func (s *AuthService) checkConflict(ctx context.Context, email, username string, excludeID uuid.UUID, emailErr error) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	existing, err := s.users.FindConflict(storeCtx, email, username, excludeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storeError(err)
	}
	if email != "" && existing.Email == email {
		return emailErr
	}
	return ErrUsernameTaken
}

// conflictError maps a duplicate-key failure from the store, which covers
// the race between checkConflict and the write.
func conflictError(err error, emailErr error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return emailErr
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrUsernameTaken
	default:
		return storeError(err)
	}
}
