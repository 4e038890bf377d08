package handler

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID   uuid.UUID
	Role     model.Role
	Username string
	Email    string
}

// IdentityFromContext returns the caller resolved by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IUserLoader resolves the current state of a user for every authenticated request.
type IUserLoader interface {
	Profile(ctx context.Context, userID uuid.UUID) (*model.PublicUser, error)
}

type Authenticator struct {
	tokens *service.TokenManager
	users  IUserLoader
}

func NewAuthenticator(tokens *service.TokenManager, users IUserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate verifies the access token and reloads the user, so deleted
// or deactivated accounts are rejected even with an unexpired token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			common.NewAppError(http.StatusUnauthorized, "Access denied. No token provided.", nil).Send(w)
			return
		}

		verified, err := a.tokens.VerifyAccessToken(tokenString)
		if err != nil {
			message := "Invalid token."
			if errors.Is(err, service.ErrTokenExpired) {
				message = "Token expired. Please login again."
			}
			common.NewAppError(http.StatusUnauthorized, message, err).Send(w)
			return
		}

		user, err := a.users.Profile(r.Context(), verified.UserID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUserNotFound):
				common.NewAppError(http.StatusUnauthorized, "User no longer exists.", err).Send(w)
			case errors.Is(err, service.ErrServiceUnavailable):
				common.NewAppError(http.StatusServiceUnavailable, "Service temporarily unavailable", err).Send(w)
			default:
				common.NewAppError(http.StatusInternalServerError, "Authentication failed.", err).Send(w)
			}
			return
		}
		if !user.IsActive {
			common.NewAppError(http.StatusUnauthorized, "User account is deactivated.", nil).Send(w)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			UserID:   user.ID,
			Role:     user.Role,
			Username: user.Username,
			Email:    user.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles admits only callers whose role is one of roles. It must run
// after Authenticate.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				common.NewAppError(http.StatusUnauthorized, "Access denied. Please login.", nil).Send(w)
				return
			}

			if !slices.Contains(roles, identity.Role) {
				logger.Log.WithFields(logrus.Fields{
					"user_id":        identity.UserID,
					"user_role":      identity.Role,
					"required_roles": roles,
				}).Warn("Unauthorized access attempt")
				common.NewAppError(http.StatusForbidden, "Access denied. Insufficient permissions.", nil).Send(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
