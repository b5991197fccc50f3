package account

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT body for both token types.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer with the given lifetimes.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// RefreshTTL is how long a refresh token stays valid.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// Issue signs a fresh pair for accountID and returns the refresh token id.
func (t *TokenIssuer) Issue(accountID string) (TokenPair, string, error) {
	access, _, err := t.sign(accountID, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, "", err
	}
	refresh, jti, err := t.sign(accountID, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, "", err
	}
	return TokenPair{Access: access, Refresh: refresh}, jti, nil
}

// ParseAccess validates an access token and returns its subject.
func (t *TokenIssuer) ParseAccess(token string) (string, error) {
	claims, err := t.parse(token, tokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseRefresh validates a refresh token and returns its subject and id.
func (t *TokenIssuer) ParseRefresh(token string) (string, string, error) {
	claims, err := t.parse(token, tokenTypeRefresh)
	if err != nil {
		return "", "", err
	}
	if claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}

func (t *TokenIssuer) sign(accountID, tokenType string, ttl time.Duration) (string, string, error) {
	now := t.now()
	jti := uuid.NewString()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("account: sign %s token: %w", tokenType, err)
	}
	return signed, jti, nil
}

func (t *TokenIssuer) parse(token, tokenType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
