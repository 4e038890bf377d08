package repository

import (
	"context"
	"database/sql"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IUserRepository is the credential store. It owns users and their single
// active refresh-token session.
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// FindConflict returns a user other than excludeID that already holds
	// email or username, or ErrNotFound. Empty arguments are ignored.
	FindConflict(ctx context.Context, email, username string, excludeID uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.User, error)
	// UpdatePassword stores a new hash and drops the current session.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// SetRefreshToken unconditionally overwrites the session. A non-nil
	// lastLogin is stamped in the same write.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expires time.Time, lastLogin *time.Time) error
	// RotateRefreshToken replaces current with next only if current is the
	// stored, unexpired token at now. Otherwise ErrRefreshTokenMismatch.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string, expires, now time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*model.User, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
	// SetActive toggles the active flag; deactivation also drops the session.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// UserRepository implements IUserRepository on PostgreSQL.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, username, email, password_hash, role, is_active, is_email_verified,
	refresh_token, refresh_token_expires, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsEmailVerified,
		&u.RefreshToken, &u.RefreshTokenExpires, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user and fills in the generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"username": user.Username,
		"role":     user.Role,
	})
	log.Debug("Executing query to create a new user")

	query := `INSERT INTO users (username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_email_verified, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.Role, user.IsActive).
		Scan(&user.ID, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		err = classifyError(err)
		if err != ErrDuplicateEmail && err != ErrDuplicateUsername {
			log.WithError(err).Error("Failed to execute create user query")
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, r.logLookupError(classifyError(err), "user_id", id)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, r.logLookupError(classifyError(err), "email", email)
	}
	return user, nil
}

func (r *UserRepository) FindConflict(ctx context.Context, email, username string, excludeID uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE (($1 <> '' AND email = $1) OR ($2 <> '' AND username = $2)) AND id <> $3
		LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email, username, excludeID))
	if err != nil {
		return nil, r.logLookupError(classifyError(err), "username", username)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update model.ProfileUpdate) (*model.User, error) {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to update user profile")

	query := `UPDATE users
		SET username = COALESCE($2, username), email = COALESCE($3, email), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id, update.Username, update.Email))
	if err != nil {
		err = classifyError(err)
		if err != ErrNotFound && err != ErrDuplicateEmail && err != ErrDuplicateUsername {
			log.WithError(err).Error("Failed to execute update profile query")
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users
		SET password_hash = $2, refresh_token = NULL, refresh_token_expires = NULL, updated_at = NOW()
		WHERE id = $1`
	return r.execAffectingUser(ctx, "update password", query, id, passwordHash)
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token string, expires time.Time, lastLogin *time.Time) error {
	query := `UPDATE users
		SET refresh_token = $2, refresh_token_expires = $3, last_login = COALESCE($4, last_login), updated_at = NOW()
		WHERE id = $1`
	return r.execAffectingUser(ctx, "set refresh token", query, id, token, expires, lastLogin)
}

// RotateRefreshToken is a single conditional UPDATE, so two concurrent
// rotations presenting the same token cannot both succeed.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string, expires, now time.Time) error {
	log := logger.Log.WithField("user_id", id)
	log.Debug("Executing query to rotate refresh token")

	query := `UPDATE users
		SET refresh_token = $3, refresh_token_expires = $4, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2 AND refresh_token_expires > $5`
	res, err := r.DB.ExecContext(ctx, query, id, current, next, expires, now)
	if err != nil {
		err = classifyError(err)
		log.WithError(err).Error("Failed to execute rotate refresh token query")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyError(err)
	}
	if n == 0 {
		return ErrRefreshTokenMismatch
	}
	return nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET refresh_token = NULL, refresh_token_expires = NULL, updated_at = NOW() WHERE id = $1`
	return r.execAffectingUser(ctx, "clear refresh token", query, id)
}

// List returns one page of users, newest first, and the total user count.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"limit":  limit,
		"offset": offset,
	})
	log.Debug("Executing query to list users")

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		err = classifyError(err)
		log.WithError(err).Error("Failed to count users")
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		err = classifyError(err)
		log.WithError(err).Error("Failed to execute list users query")
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*model.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan user row")
			return nil, 0, classifyError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classifyError(err)
	}
	return users, total, nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execAffectingUser(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.execAffectingUser(ctx, "update role", query, id, role)
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE users
		SET is_active = $2,
			refresh_token = CASE WHEN $2 THEN refresh_token ELSE NULL END,
			refresh_token_expires = CASE WHEN $2 THEN refresh_token_expires ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1`
	return r.execAffectingUser(ctx, "set active flag", query, id, active)
}

// execAffectingUser runs a single-row write and reports ErrNotFound when
// no user row matched.
func (r *UserRepository) execAffectingUser(ctx context.Context, op string, query string, id uuid.UUID, args ...any) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":   id,
		"operation": op,
	})
	log.Debug("Executing user update query")

	res, err := r.DB.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		err = classifyError(err)
		log.WithError(err).Error("Failed to execute user update query")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) logLookupError(err error, key string, value any) error {
	if err != ErrNotFound {
		logger.Log.WithError(err).WithField(key, value).Error("Failed to execute user lookup query")
	}
	return err
}
