package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateJWT("user-1", secret, "parley", time.Hour)
	require.NoError(t, err)

	sub, err := ValidateToken(token, secret, "parley")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestGenerateJWT_RejectsEmptyInputs(t *testing.T) {
	_, err := GenerateJWT(" ", secret, "", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySubject)

	_, err = GenerateJWT("user-1", nil, "", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestValidateToken_Failures(t *testing.T) {
	expired, err := GenerateJWT("user-1", secret, "parley", -time.Minute)
	require.NoError(t, err)
	otherIssuer, err := GenerateJWT("user-1", secret, "someone-else", time.Hour)
	require.NoError(t, err)
	good, err := GenerateJWT("user-1", secret, "parley", time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
	}{
		{"expired", expired, secret},
		{"wrong issuer", otherIssuer, secret},
		{"wrong secret", good, []byte("nope")},
		{"alg none", unsigned, secret},
		{"garbage", "not.a.token", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, tt.secret, "parley")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier(t *testing.T) {
	_, err := NewJWTVerifier(nil, "")
	require.ErrorIs(t, err, ErrEmptySecret)

	v, err := NewJWTVerifier(secret, "parley")
	require.NoError(t, err)

	token, err := GenerateJWT("alice", secret, "parley", time.Hour)
	require.NoError(t, err)

	sub, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Verify(ctx, token)
	assert.ErrorIs(t, err, context.Canceled)
}
