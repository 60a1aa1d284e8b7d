// Package auth validates the HS256 JWT access tokens issued by the account service.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMalformed    = errors.New("malformed token")
	ErrMissingToken = errors.New("missing token")
)

// Claims represents the access token claims.
type Claims struct {
	UserID string `json:"uid"` // UUID string
	jwt.RegisteredClaims
}

// UserInfo contains extracted user information from a validated token.
type UserInfo struct {
	UserID    string
	ExpiresAt time.Time
}

// Authenticator validates access tokens.
type Authenticator struct {
	tokenKey []byte
}

// New creates a new Authenticator with the shared signing key.
func New(tokenKey []byte) *Authenticator {
	return &Authenticator{
		tokenKey: tokenKey,
	}
}

// ValidateToken validates a token and returns user information.
func (a *Authenticator) ValidateToken(tokenString string) (*UserInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.tokenKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, ErrMalformed
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &UserInfo{
		UserID:    claims.UserID,
		ExpiresAt: expiresAt,
	}, nil
}

// Sign issues a token for userID. Used by tooling and tests; production
// tokens come from the account service.
func (a *Authenticator) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.tokenKey)
}

// TokenFromRequest extracts the bearer token. Browsers cannot set headers on
// websocket upgrades, so allowQuery also accepts ?access_token=.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", ErrMalformed
		}
		return parts[1], nil
	}
	if allowQuery {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}
