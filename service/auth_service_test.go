// file: service/auth_service_test.go

package service

import (
	"context"
	"errors"
	"fmt"
	"go-auth-api/model"
	"go-auth-api/repository"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthSettings() AuthSettings {
	return AuthSettings{
		RefreshSessionTTL: 7 * 24 * time.Hour,
		StoreTimeout:      time.Second,
	}
}

func newTestAuthService(t *testing.T, repo repository.IUserRepository) *AuthService {
	t.Helper()
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(repo, hasher, newTestTokenManager(t), testAuthSettings())
}

func registerAlice(t *testing.T, svc *AuthService) *model.AuthResult {
	t.Helper()
	result, err := svc.Register(context.Background(), model.RegisterRequest{
		Username: "alice",
		Email:    "A@x.com",
		Password: "Secret1!",
	})
	require.NoError(t, err)
	return result
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes email and hides the hash", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)

		result := registerAlice(t, svc)

		assert.Equal(t, "a@x.com", result.User.Email)
		assert.Equal(t, model.RoleStudent, result.User.Role)
		assert.True(t, result.User.IsActive)

		stored, err := repo.GetByID(ctx, result.User.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "Secret1!", stored.PasswordHash)
		require.NotNil(t, stored.RefreshToken)
		assert.Equal(t, result.Tokens.RefreshToken, *stored.RefreshToken)
		require.NotNil(t, stored.RefreshTokenExpires)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *stored.RefreshTokenExpires, time.Minute)
	})

	t.Run("duplicate email in different case", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		registerAlice(t, svc)

		_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice2", Email: "a@X.com", Password: "Secret1!"})

		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		registerAlice(t, svc)

		_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Email: "other@x.com", Password: "Secret1!"})

		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("admin role requires opt-in", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		req := model.RegisterRequest{Username: "root", Email: "root@x.com", Password: "Secret1!", Role: model.RoleAdmin}

		_, err := svc.Register(ctx, req)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)

		svc.settings.AllowRoleOnRegister = true
		result, err := svc.Register(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, result.User.Role)
	})

	t.Run("duplicate key from store wins the race", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := newTestAuthService(t, repo)
		repo.On("FindConflict", mock.Anything, "a@x.com", "alice", uuid.Nil).Return(nil, repository.ErrNotFound).Once()
		repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail).Once()

		_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "Secret1!"})

		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertExpectations(t)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("access token resolves to the user", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)
		registered := registerAlice(t, svc)

		result, err := svc.Login(ctx, "a@x.com", "Secret1!")
		require.NoError(t, err)

		identity, err := svc.tokens.VerifyAccessToken(result.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, identity.UserID)
		assert.NotNil(t, result.User.LastLogin)

		stored, err := repo.GetByID(ctx, registered.User.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLogin)
		assert.Equal(t, result.Tokens.RefreshToken, *stored.RefreshToken)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		registerAlice(t, svc)

		_, wrongPassword := svc.Login(ctx, "a@x.com", "nope-nope")
		_, unknownEmail := svc.Login(ctx, "nobody@x.com", "Secret1!")

		assert.Equal(t, ErrInvalidCredentials, wrongPassword)
		assert.Equal(t, ErrInvalidCredentials, unknownEmail)
		assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	})

	t.Run("deactivated account", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)
		registered := registerAlice(t, svc)
		require.NoError(t, repo.SetActive(ctx, registered.User.ID, false))

		_, err := svc.Login(ctx, "a@x.com", "Secret1!")

		assert.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("new login supersedes previous session", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		registered := registerAlice(t, svc)

		_, err := svc.Login(ctx, "a@x.com", "Secret1!")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, registered.Tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("hash at an old cost is upgraded", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		registered := registerAlice(t, newTestAuthService(t, repo))

		hasher, err := NewPasswordHasher(bcrypt.MinCost + 1)
		require.NoError(t, err)
		svc := NewAuthService(repo, hasher, newTestTokenManager(t), testAuthSettings())

		result, err := svc.Login(ctx, "a@x.com", "Secret1!")
		require.NoError(t, err)

		stored, err := repo.GetByID(ctx, registered.User.ID)
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost+1, cost)
		require.NotNil(t, stored.RefreshToken)
		assert.Equal(t, result.Tokens.RefreshToken, *stored.RefreshToken)
	})

	t.Run("store outage is not a credential verdict", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := newTestAuthService(t, repo)
		outage := fmt.Errorf("%w: %v", repository.ErrUnavailable, context.DeadlineExceeded)
		repo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, outage).Once()

		_, err := svc.Login(ctx, "a@x.com", "Secret1!")

		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.False(t, errors.Is(err, ErrInvalidCredentials))
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation yields a new pair and retires the old token", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		pair, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.Tokens.RefreshToken, pair.RefreshToken)
		assert.NotEqual(t, login.Tokens.AccessToken, pair.AccessToken)

		_, err = svc.Refresh(ctx, login.Tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)

		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	})

	t.Run("logout revokes the refresh token", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		require.NoError(t, svc.Logout(ctx, login.User.ID))

		_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		_, err := svc.Refresh(ctx, login.Tokens.AccessToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, ErrTokenBadSignature)
	})

	t.Run("malformed token", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())

		_, err := svc.Refresh(ctx, "garbage")

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("stored session expired", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)
		svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

		_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)
		login := registerAlice(t, svc)
		require.NoError(t, repo.Delete(ctx, login.User.ID))

		_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)

		assert.Equal(t, ErrInvalidRefreshToken, err)
	})

	t.Run("deactivated user", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)
		login := registerAlice(t, svc)
		require.NoError(t, repo.SetActive(ctx, login.User.ID, false))

		_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.NotErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("deactivated user with token still on record", func(t *testing.T) {
		repo := repository.NewMemoryUserRepository()
		svc := newTestAuthService(t, repo)
		login := registerAlice(t, svc)
		require.NoError(t, repo.SetActive(ctx, login.User.ID, false))
		require.NoError(t, repo.SetRefreshToken(ctx, login.User.ID, login.Tokens.RefreshToken, time.Now().Add(time.Hour), nil))

		_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.NotErrorIs(t, err, ErrAccountDeactivated)
		stored, err := repo.GetByID(ctx, login.User.ID)
		require.NoError(t, err)
		assert.Equal(t, login.Tokens.RefreshToken, *stored.RefreshToken)
	})

	t.Run("concurrent refreshes with one token", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		const workers = 16
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("store outage during rotation", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := newTestAuthService(t, repo)
		user := &model.User{ID: uuid.New(), IsActive: true}
		token, err := svc.tokens.IssueRefreshToken(user.ID)
		require.NoError(t, err)

		repo.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
		repo.On("RotateRefreshToken", mock.Anything, user.ID, token, mock.Anything, mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: connection reset", repository.ErrUnavailable)).Once()

		_, err = svc.Refresh(ctx, token)

		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.False(t, errors.Is(err, ErrInvalidRefreshToken))
		repo.AssertExpectations(t)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		err := svc.ChangePassword(ctx, login.User.ID, "wrong-one", "NewSecret2!")

		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("new password replaces old and drops session", func(t *testing.T) {
		svc := newTestAuthService(t, repository.NewMemoryUserRepository())
		login := registerAlice(t, svc)

		require.NoError(t, svc.ChangePassword(ctx, login.User.ID, "Secret1!", "NewSecret2!"))

		_, err := svc.Login(ctx, "a@x.com", "Secret1!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Refresh(ctx, login.Tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)

		_, err = svc.Login(ctx, "a@x.com", "NewSecret2!")
		assert.NoError(t, err)
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, repository.NewMemoryUserRepository())
	alice := registerAlice(t, svc)
	_, err := svc.Register(ctx, model.RegisterRequest{Username: "bob", Email: "bob@x.com", Password: "Secret1!"})
	require.NoError(t, err)

	t.Run("email conflict", func(t *testing.T) {
		email := "BOB@x.com"
		_, err := svc.UpdateProfile(ctx, alice.User.ID, model.UpdateProfileRequest{Email: &email})
		assert.ErrorIs(t, err, ErrEmailInUse)
	})

	t.Run("username conflict", func(t *testing.T) {
		username := "bob"
		_, err := svc.UpdateProfile(ctx, alice.User.ID, model.UpdateProfileRequest{Username: &username})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("own values are not a conflict", func(t *testing.T) {
		email := "a@x.com"
		username := "alice_renamed"
		user, err := svc.UpdateProfile(ctx, alice.User.ID, model.UpdateProfileRequest{Email: &email, Username: &username})
		require.NoError(t, err)
		assert.Equal(t, "alice_renamed", user.Username)
		assert.Equal(t, "a@x.com", user.Email)
	})

	t.Run("nothing to change", func(t *testing.T) {
		user, err := svc.UpdateProfile(ctx, alice.User.ID, model.UpdateProfileRequest{})
		require.NoError(t, err)
		assert.Equal(t, alice.User.ID, user.ID)
	})
}

func TestAuthService_ProfileAndLogoutUnknownUser(t *testing.T) {
	svc := newTestAuthService(t, repository.NewMemoryUserRepository())

	_, err := svc.Profile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = svc.Logout(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
