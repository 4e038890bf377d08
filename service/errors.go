// file: service/errors.go

package service

import (
	"errors"
	"fmt"
	"go-auth-api/repository"
)

var (
	// ErrTokenInvalid is the parent of every token verification failure.
	ErrTokenInvalid      = errors.New("invalid token")
	ErrTokenMalformed    = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrTokenBadSignature = fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	ErrTokenExpired      = fmt.Errorf("%w: expired", ErrTokenInvalid)

	ErrEmailTaken           = errors.New("email already registered")
	ErrEmailInUse           = errors.New("email already in use")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountDeactivated   = errors.New("account is deactivated")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrUserNotFound         = errors.New("user not found")
	ErrIncorrectPassword    = errors.New("current password is incorrect")
	ErrPasswordTooLong      = errors.New("password must be at most 72 bytes")
	ErrInvalidRole          = errors.New("invalid role specified")
	ErrRoleNotAllowed       = errors.New("role cannot be self-assigned")
	ErrCannotDeleteSelf     = errors.New("cannot delete your own account")
	ErrCannotDeactivateSelf = errors.New("cannot deactivate your own account")
	ErrServiceUnavailable   = errors.New("service temporarily unavailable")
)

// storeError keeps infrastructure failures distinguishable from verdicts.
func storeError(err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return err
}
