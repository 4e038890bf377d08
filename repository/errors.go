// file: repository/errors.go

package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match stored value")
	// ErrUnavailable wraps infrastructure failures (timeouts, lost connections).
	ErrUnavailable = errors.New("credential store unavailable")
)

const uniqueViolation = "23505"

// classifyError translates driver errors into the repository's sentinels.
// Errors it does not recognise are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "email"):
			return ErrDuplicateEmail
		case pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "username"):
			return ErrDuplicateUsername
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
