// Package auth verifies bearer tokens and carries the resolved actor in the
// request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

const issuer = "yamdb"

var ErrInvalidToken = errors.New("auth: invalid token")

// Claims identify a user by id in the subject. The role is deliberately not
// part of the token: it is read from the database per request so a role
// change applies immediately.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return Verifier{secret: []byte(secret)}
}

// Parse validates token and returns the user id from its subject.
func (v Verifier) Parse(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// Sign issues a token for userID valid for ttl.
func (v Verifier) Sign(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

type ctxKeyActor struct{}

// WithActor stores the authenticated user in ctx.
func WithActor(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, u)
}

// ActorFromContext returns the authenticated user, or nil for anonymous requests.
func ActorFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKeyActor{}).(*domain.User)
	return u
}
