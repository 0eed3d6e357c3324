package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and verifies the access/refresh credential pair.
// It never touches storage.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager creates a TokenManager. An empty refreshSecret falls back to accessSecret.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Issue signs a fresh access/refresh pair for accountID
func (tm *TokenManager) Issue(accountID string) (*models.TokenPair, error) {
	now := tm.now()

	access, accessExp, err := tm.sign(accountID, models.TokenTypeAccess, tm.accessSecret, tm.accessTTL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, refreshExp, err := tm.sign(accountID, models.TokenTypeRefresh, tm.refreshSecret, tm.refreshTTL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (tm *TokenManager) sign(accountID, tokenType string, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(ttl)

	claims := &models.TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccess verifies an access token. Refresh tokens are rejected.
func (tm *TokenManager) ValidateAccess(raw string) (*models.TokenClaims, error) {
	return tm.validate(raw, models.TokenTypeAccess, tm.accessSecret)
}

// ValidateRefresh verifies a refresh token. Access tokens are rejected.
func (tm *TokenManager) ValidateRefresh(raw string) (*models.TokenClaims, error) {
	return tm.validate(raw, models.TokenTypeRefresh, tm.refreshSecret)
}

func (tm *TokenManager) validate(raw, wantType string, secret []byte) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}

	if claims.Type != wantType {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}
