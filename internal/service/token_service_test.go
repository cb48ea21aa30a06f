package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	user := uuid.New()

	token, err := svc.IssueToken(user, TokenTypeCandidate)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, TokenTypeCandidate, claims.TokenType)
	assert.Equal(t, user.String(), claims.Subject)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenService("other", time.Hour).IssueToken(uuid.New(), TokenTypeAdmin)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewTokenService("test-secret", -time.Minute).IssueToken(uuid.New(), TokenTypeAdmin)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{TokenType: TokenTypeCandidate})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.Error(t, err)
	})
}
