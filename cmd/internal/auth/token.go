// Package auth implements the bearer-credential collaborator for the
// realtime gateway: HS256 JWT access tokens carrying the user identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Minimum 32 bytes recommended for an HMAC-SHA256 secret.
	// Measured in bytes (not runes) because the key is used as raw bytes.
	minSecretBytes = 32

	tokenTypeAccess = "access"
)

var (
	// ErrSecretTooShort indicates a signing secret below the minimum size.
	ErrSecretTooShort = errors.New("auth: signing secret shorter than 32 bytes")
	// ErrInvalidToken indicates a token that failed signature or claim validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrWrongTokenType indicates a structurally valid token of the wrong type
	// (e.g., a refresh token presented where an access token is required).
	ErrWrongTokenType = errors.New("auth: wrong token type")
)

// Claims is the access-token claim set. UserID is the only identity field
// the realtime core consumes.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access tokens. Verify satisfies the
// realtime.Authenticator contract.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a TokenManager. Fail-fast on weak secrets:
// silently accepting short keys in production is unacceptable.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < minSecretBytes {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed access token for userID.
func (m *TokenManager) Issue(userID string, now time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("auth: empty user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims := Claims{
		UserID:    userID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Verify validates a bearer credential and returns the user identity.
func (m *TokenManager) Verify(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess {
		return "", ErrWrongTokenType
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	return claims.UserID, nil
}
