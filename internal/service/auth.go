package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthService gates the administrative surface. Operators authenticate with
// a shared secret, either directly per request or exchanged once for a
// short-lived JWT session token. The secret comparison is constant time.
type AuthService struct {
	adminSecret []byte
	jwtSecret   []byte
	jwtExpiry   time.Duration
}

// NewAuthService creates an AuthService. A zero jwtExpiry defaults to 24h.
func NewAuthService(adminSecret, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	if jwtExpiry <= 0 {
		jwtExpiry = 24 * time.Hour
	}
	return &AuthService{
		adminSecret: []byte(adminSecret),
		jwtSecret:   []byte(jwtSecret),
		jwtExpiry:   jwtExpiry,
	}
}

// VerifySecret checks a presented admin secret. An empty configured secret
// disables admin access entirely rather than allowing everyone in.
func (s *AuthService) VerifySecret(secret string) error {
	if len(s.adminSecret) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(secret), s.adminSecret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// SessionTTL returns the lifetime of issued session tokens.
func (s *AuthService) SessionTTL() time.Duration {
	return s.jwtExpiry
}

// IssueSession creates a signed JWT session token for an operator who has
// already presented the correct shared secret.
func (s *AuthService) IssueSession() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "keygate",
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateSession verifies a JWT session token.
func (s *AuthService) ValidateSession(tokenStr string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer("keygate"))
	if err != nil || !token.Valid {
		return ErrUnauthorized
	}
	return nil
}
