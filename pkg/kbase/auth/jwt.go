package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	issuer          = "kbase"
	devSecret       = "kbase-dev-secret-change-in-production"
	DefaultTokenTTL = 24 * time.Hour
)

// Claims are the console session claims.
type Claims struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

type signer struct {
	mu     sync.RWMutex
	secret []byte
	ttl    time.Duration
}

var tokens = &signer{ttl: DefaultTokenTTL}

// Configure sets the signing secret and token lifetime. An empty secret falls
// back to JWT_SECRET and then to a development default; a non-positive ttl
// means DefaultTokenTTL.
func Configure(secret string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	tokens.mu.Lock()
	defer tokens.mu.Unlock()
	tokens.secret = []byte(secret)
	tokens.ttl = ttl
}

// SetSecret changes only the signing secret.
func SetSecret(s string) {
	tokens.mu.Lock()
	defer tokens.mu.Unlock()
	tokens.secret = []byte(s)
}

func (s *signer) key() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.secret) > 0 {
		return s.secret
	}
	if env := os.Getenv("JWT_SECRET"); env != "" {
		return []byte(env)
	}
	return []byte(devSecret)
}

func (s *signer) lifetime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl
}

// GenerateToken signs a session token for a console user.
func GenerateToken(userID uint, email string, systemRole string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SystemRole: systemRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokens.lifetime())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokens.key())
}

// ValidateToken checks the signature, issuer and expiry of a session token.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tokens.key(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	return claims, nil
}
