package model

import "github.com/golang-jwt/jwt/v5"

// TokenKind separates access tokens from refresh tokens inside the claims.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

type AppClaims struct {
	UserID string    `json:"uid"`
	Kind   TokenKind `json:"typ"`
	jwt.RegisteredClaims
}
