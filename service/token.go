// file: service/token.go

package service

import (
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig is the immutable signing configuration.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Identity is what a successfully verified token proves.
type Identity struct {
	UserID    uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager mints and verifies HS256 access and refresh tokens. The two
// kinds use distinct secrets and carry their kind in the claims.
type TokenManager struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) IssueAccessToken(userID uuid.UUID) (string, error) {
	return m.sign(userID, model.TokenKindAccess, m.accessKey, m.accessTTL)
}

func (m *TokenManager) IssueRefreshToken(userID uuid.UUID) (string, error) {
	return m.sign(userID, model.TokenKindRefresh, m.refreshKey, m.refreshTTL)
}

// IssuePair mints a fresh access/refresh pair for userID.
func (m *TokenManager) IssuePair(userID uuid.UUID) (*model.TokenPair, error) {
	access, err := m.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, kind model.TokenKind, key []byte, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &model.AppClaims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(key)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return tokenString, nil
}

func (m *TokenManager) VerifyAccessToken(tokenString string) (*Identity, error) {
	return m.Verify(tokenString, m.accessKey, model.TokenKindAccess)
}

func (m *TokenManager) VerifyRefreshToken(tokenString string) (*Identity, error) {
	return m.Verify(tokenString, m.refreshKey, model.TokenKindRefresh)
}

// Verify checks signature, expiry and kind. Failures are one of
// ErrTokenMalformed, ErrTokenBadSignature or ErrTokenExpired.
func (m *TokenManager) Verify(tokenString string, key []byte, kind model.TokenKind) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &model.AppClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	// The kind check holds regardless of which secret signed the token.
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: token kind %q, want %q", ErrTokenBadSignature, claims.Kind, kind)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id claim", ErrTokenMalformed)
	}

	identity := &Identity{UserID: userID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
