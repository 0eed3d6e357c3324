package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims are embedded in both access and refresh tokens.
// The account id travels in RegisteredClaims.Subject.
type TokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token
func (c *TokenClaims) AccountID() string {
	return c.Subject
}

// TokenPair is the result of a successful login or refresh
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
