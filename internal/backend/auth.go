// Package backend implements the RPC service that owns identity, permissions
// and stable reference ids, together with the HTTP client the live document
// layer consumes it through.
package backend

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

// TokenIssuer signs and verifies the session tokens that carry the
// authenticated principal.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates an issuer with an HS256 signing secret.
func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue signs a session token for the given user.
func (t *TokenIssuer) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify validates a session token and returns its principal. Any failure,
// including expiry, is a session-invalid error: the caller must force
// re-authentication rather than continue on a stale session.
func (t *TokenIssuer) Verify(token string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.NewSessionInvalid(nil)
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Principal{}, apperrors.NewSessionInvalid(err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return domain.Principal{}, apperrors.NewSessionInvalid(nil)
	}
	return domain.Principal{UserID: claims.Subject}, nil
}

// principalFromRequest extracts the principal from the Authorization header.
// A missing header is the anonymous principal; a present but invalid token
// is a session error.
func (t *TokenIssuer) principalFromRequest(r *http.Request) (domain.Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Principal{}, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return domain.Principal{}, apperrors.NewSessionInvalid(nil)
	}
	return t.Verify(token)
}
