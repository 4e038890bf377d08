package handler

import (
	"errors"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/service"
	"net/http"
)

// ErrorHandlingMiddleware adapts an AppError-returning handler to http.Handler.
func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// toAppError turns a service error into the status and client-safe message
// sent over the wire. Anything unrecognised is a 500.
func toAppError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrServiceUnavailable):
		return common.NewAppError(http.StatusServiceUnavailable, "Service temporarily unavailable", err)
	case errors.Is(err, service.ErrEmailTaken):
		return common.NewAppError(http.StatusBadRequest, "Email already registered", err)
	case errors.Is(err, service.ErrEmailInUse):
		return common.NewAppError(http.StatusBadRequest, "Email already in use", err)
	case errors.Is(err, service.ErrUsernameTaken):
		return common.NewAppError(http.StatusBadRequest, "Username already taken", err)
	case errors.Is(err, service.ErrIncorrectPassword):
		return common.NewAppError(http.StatusBadRequest, "Current password is incorrect", err)
	case errors.Is(err, service.ErrPasswordTooLong):
		return common.NewAppError(http.StatusBadRequest, "Password must be at most 72 bytes", err)
	case errors.Is(err, service.ErrCannotDeleteSelf):
		return common.NewAppError(http.StatusBadRequest, "Cannot delete your own account", err)
	case errors.Is(err, service.ErrCannotDeactivateSelf):
		return common.NewAppError(http.StatusBadRequest, "Cannot deactivate your own account", err)
	case errors.Is(err, service.ErrInvalidRole):
		return common.NewAppError(http.StatusBadRequest, "Invalid role specified", err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return common.NewAppError(http.StatusUnauthorized, "Invalid email or password", err)
	case errors.Is(err, service.ErrAccountDeactivated):
		return common.NewAppError(http.StatusUnauthorized, "Account is deactivated. Please contact support.", err)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		if errors.Is(err, service.ErrTokenExpired) {
			return common.NewAppError(http.StatusUnauthorized, "Refresh token expired", err)
		}
		return common.NewAppError(http.StatusUnauthorized, "Invalid refresh token", err)
	case errors.Is(err, service.ErrRoleNotAllowed):
		return common.NewAppError(http.StatusForbidden, "Role cannot be self-assigned", err)
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusNotFound, "User not found", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	common.NewAppError(http.StatusNotFound, fmt.Sprintf("Not Found - %s", r.URL.Path), nil).Send(w)
}
