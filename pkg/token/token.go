// Package token issues and verifies the signed session tokens handed out at login, and
// keeps the active token in client-local storage.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"
)

// DefaultLifetime is how long an issued token stays valid.
const DefaultLifetime = 4 * time.Hour

// ErrInvalidToken is joined with the library error for every verification failure other
// than expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by a session token.
type Claims struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a token service for secret.
func NewService(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}

	s := &Service{
		secret:   []byte(secret),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lifetime returns the validity window of issued tokens.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for the given names, valid for the service lifetime from now.
func (s *Service) Issue(claims Claims) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.lifetime))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", pkgerrors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims. Expired tokens
// fail with an error matching jwt.ErrTokenExpired; anything else matches ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, pkgerrors.Wrap(err, "verify token")
		}
		return nil, pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	return claims, nil
}

func (s *Service) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.secret, nil
}
