package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "go-auth-api-test",
	}
}

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testTokenConfig())
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_SecretsRequired(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = ""
	_, err := NewTokenManager(cfg)
	assert.Error(t, err)

	cfg = testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err = NewTokenManager(cfg)
	assert.Error(t, err)
}

func TestTokenManager_IssuePair(t *testing.T) {
	m := newTestTokenManager(t)
	userID := uuid.New()

	pair, err := m.IssuePair(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := m.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, access.UserID)

	refresh, err := m.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, refresh.UserID)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt))
}

func TestTokenManager_TokensAreUnique(t *testing.T) {
	m := newTestTokenManager(t)
	userID := uuid.New()

	first, err := m.IssueRefreshToken(userID)
	require.NoError(t, err)
	second, err := m.IssueRefreshToken(userID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenManager_CrossKindRejected(t *testing.T) {
	m := newTestTokenManager(t)
	pair, err := m.IssuePair(uuid.New())
	require.NoError(t, err)

	_, err = m.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenBadSignature)

	_, err = m.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenManager_KindCheckedEvenWithMatchingSecret(t *testing.T) {
	m := newTestTokenManager(t)
	refresh, err := m.IssueRefreshToken(uuid.New())
	require.NoError(t, err)

	// Right secret, wrong kind.
	_, err = m.Verify(refresh, m.refreshKey, "access")
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	m := newTestTokenManager(t)
	cfg := testTokenConfig()
	cfg.AccessSecret = "some-other-access-secret"
	other, err := NewTokenManager(cfg)
	require.NoError(t, err)

	token, err := other.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_Expired(t *testing.T) {
	m := newTestTokenManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := m.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_Malformed(t *testing.T) {
	m := newTestTokenManager(t)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
	}
}
