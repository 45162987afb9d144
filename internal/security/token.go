// Package security validates and mints the bearer tokens the API accepts.
// Tokens are HS256 JWTs whose subject is the user ID.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a token is rejected.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager signs and verifies tokens with one shared secret.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a manager for secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	return &TokenManager{secret: []byte(secret), now: time.Now}, nil
}

// Mint issues a token for userID valid for ttl.
func (m *TokenManager) Mint(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id must not be empty")
	}
	now := m.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return t.SignedString(m.secret)
}

// Verify returns the user ID a valid token was issued for.
func (m *TokenManager) Verify(tokenStr string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// LoadOrCreateSecret loads the development signing secret from
// home/keys/jwt.secret, generating it on first run.
func LoadOrCreateSecret(home string) (string, error) {
	keyDir := filepath.Join(home, "keys")
	path := filepath.Join(keyDir, "jwt.secret")

	if b, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return "", fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("write secret: %w", err)
	}
	return secret, nil
}
