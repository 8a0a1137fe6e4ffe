package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when neither the caller nor the config set a lifetime.
const DefaultTokenTTL = 30 * time.Minute

// Claims is the validated content of an access token. UserID pins the
// subject to one account so a token does not follow a username to a new owner.
type Claims struct {
	Subject   string
	UserID    int
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 bearer tokens.
type TokenService struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenService returns a service signing with secret. The secret is copied.
func NewTokenService(secret string, defaultTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth.NewTokenService: signing secret is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// DefaultTTL is the lifetime used when Issue receives ttl <= 0.
func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for subject owned by account userID. ttl <= 0 uses the
// default lifetime.
func (s *TokenService) Issue(subject string, userID int, ttl time.Duration) (string, time.Time, error) {
	const op = "auth.TokenService.Issue"

	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("%s: empty subject", op)
	}
	if userID <= 0 {
		return "", time.Time{}, fmt.Errorf("%s: invalid user id %d", op, userID)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return signed, exp.Time, nil
}

// Validate checks the signature, then expiry, and returns the claims.
// Every failure is ErrInvalidToken.
func (s *TokenService) Validate(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.UserID <= 0 || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{Subject: claims.Subject, UserID: claims.UserID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
