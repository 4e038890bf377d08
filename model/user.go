// file: model/user.go

package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level carried by a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User is the persisted identity record. The password hash and the
// current refresh token never leave the service; use Public for responses.
type User struct {
	ID                  uuid.UUID
	Username            string
	Email               string
	PasswordHash        string
	Role                Role
	IsActive            bool
	IsEmailVerified     bool
	RefreshToken        *string
	RefreshTokenExpires *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the safe projection of User returned to clients.
type PublicUser struct {
	ID              uuid.UUID  `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	IsActive        bool       `json:"isActive"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Role:            u.Role,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
	}
}

// ProfileUpdate holds the optional fields a user may change on their own profile.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// UserPage is a page of users for the admin listing.
type UserPage struct {
	Users      []PublicUser `json:"users"`
	Pagination Pagination   `json:"pagination"`
}
