package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

var _ Resolver = (*JWTResolver)(nil)

// JWTResolver validates HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTResolver creates a resolver for tokens signed with secret. When
// issuer is non-empty, tokens must carry a matching iss claim.
func NewJWTResolver(secret []byte, issuer string) (*JWTResolver, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTResolver{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Resolve parses token and returns the identity of its subject. Every
// failure is an apperr.KindUnauthenticated error.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Unauthenticated(errors.New("missing token"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, apperr.Unauthenticated(errors.Wrap(err, "parse token"))
	}
	if !parsed.Valid {
		return Identity{}, apperr.Unauthenticated(errors.New("invalid token"))
	}

	sub, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || sub <= 0 {
		return Identity{}, apperr.Unauthenticated(errors.Errorf("invalid subject %q", claims.Subject))
	}
	return Identity{Subject: sub}, nil
}

// Issue signs a token for subject valid for ttl. It is used by tooling and
// tests.
func (r *JWTResolver) Issue(subject int64, ttl time.Duration) (string, error) {
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subject, 10),
		Issuer:    r.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
