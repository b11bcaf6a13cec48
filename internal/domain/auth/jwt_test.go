package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long!!")

func newTestResolver(t *testing.T, issuer string) *JWTResolver {
	t.Helper()
	r, err := NewJWTResolver(testSecret, issuer)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestJWTResolver_IssueResolve(t *testing.T) {
	r := newTestResolver(t, "bookclub")

	token, err := r.Issue(42, time.Hour)
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Subject)
}

func TestJWTResolver_Rejects(t *testing.T) {
	r := newTestResolver(t, "")
	now := r.now()
	exp := jwt.NewNumericDate(now.Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{
			name: "expired",
			token: sign(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Subject:   "7",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}),
		},
		{
			name:  "unexpected algorithm",
			token: sign(t, jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "7", ExpiresAt: exp}),
		},
		{
			name:  "non numeric subject",
			token: sign(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin", ExpiresAt: exp}),
		},
		{
			name:  "zero subject",
			token: sign(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "0", ExpiresAt: exp}),
		},
		{
			name:  "no exp",
			token: sign(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1", IssuedAt: jwt.NewNumericDate(now)}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
		})
	}
}

func TestJWTResolver_WrongSecret(t *testing.T) {
	other, err := NewJWTResolver([]byte("another-secret-another-secret-1234"), "")
	require.NoError(t, err)
	token, err := other.Issue(1, time.Hour)
	require.NoError(t, err)

	_, err = newTestResolver(t, "").Resolve(context.Background(), token)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestJWTResolver_IssuerMismatch(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "3",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)),
	})

	_, err := newTestResolver(t, "bookclub").Resolve(context.Background(), token)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestNewJWTResolver_EmptySecret(t *testing.T) {
	_, err := NewJWTResolver(nil, "")
	require.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Subject: 9})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(9), id.Subject)
}
