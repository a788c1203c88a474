// File: internal/auth/service_test.go
package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"picstream_backend/internal/config"
	"picstream_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenService(accessExpiry time.Duration) shared.TokenService {
	cfg := &config.Config{
		JWTSecretKey:                "test-secret-key-for-signing",
		JWTAccessTokenExpiryMinutes: accessExpiry,
		JWTRefreshTokenExpiryDays:   24 * time.Hour,
	}
	return NewJWTService(cfg, zap.NewNop())
}

func testAccount() *shared.User {
	return &shared.User{
		ID:    uuid.New(),
		Name:  "Token Person",
		Email: "token@example.com",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTokenService(15 * time.Minute)
	account := testAccount()

	token, expiresAt, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.UserID)
	assert.Equal(t, account.Email, claims.Email)
	assert.Equal(t, account.ID.String(), claims.Subject)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newTokenService(15 * time.Minute)

	token, _, err := svc.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + "forgedsignature"

	_, err = svc.ValidateToken(tampered)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newTokenService(15 * time.Minute)
	token, _, err := issuer.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	other := NewJWTService(&config.Config{
		JWTSecretKey:                "a-different-secret",
		JWTAccessTokenExpiryMinutes: 15 * time.Minute,
	}, zap.NewNop())

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTokenService(-1 * time.Minute)

	token, _, err := svc.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

// refreshSigningFailure wraps a working token service but cannot sign
// refresh tokens.
type refreshSigningFailure struct {
	shared.TokenService
}

func (f *refreshSigningFailure) GenerateRefreshToken(*shared.User) (string, time.Time, error) {
	return "", time.Time{}, errors.New("refresh signing failed")
}

func TestIssueTokensFailsWhenRefreshTokenCannotBeSigned(t *testing.T) {
	h := &Handler{
		tokenService: &refreshSigningFailure{newTokenService(15 * time.Minute)},
		logger:       zap.NewNop(),
	}

	// A half-issued credential pair must not reach the client.
	resp, err := h.issueTokens(testAccount())
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestParseRefreshTokenRejectsAccessToken(t *testing.T) {
	svc := newTokenService(15 * time.Minute)
	account := testAccount()

	accessToken, _, err := svc.GenerateAccessToken(account)
	require.NoError(t, err)
	refreshToken, _, err := svc.GenerateRefreshToken(account)
	require.NoError(t, err)

	// An access token must not be accepted where a refresh token is expected.
	_, err = svc.ParseRefreshToken(accessToken)
	assert.Error(t, err)

	claims, err := svc.ParseRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.UserID)
}
