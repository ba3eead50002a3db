// Package jwt issues and validates the first-party session tokens the
// API hands out after sign-in. Identity provider tokens are validated
// separately by pkg/identity.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyUserID is returned when user_id is empty.
	ErrEmptyUserID = errors.New("user_id cannot be empty")
	// ErrInvalidTokenType is returned when a token of the wrong type
	// is presented.
	ErrInvalidTokenType = errors.New("invalid token type")
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the session token payload. Tokens are deliberately slim:
// permissions live server-side and are re-read per request, so a
// permission change takes effect without re-issuing tokens.
type Claims struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	TokenType TokenType `json:"token_type,omitempty"`
	TenantID  string    `json:"tenant,omitempty"`

	jwt.RegisteredClaims
}

// TokenConfig holds configuration for token generation.
type TokenConfig struct {
	Secret               string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenPair contains both access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresAt    time.Time
}

// Generator issues and validates session tokens.
type Generator struct {
	config TokenConfig
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) *Generator {
	return &Generator{config: config}
}

// GenerateTokenPair creates a fresh session: a short-lived access
// token and a long-lived refresh token sharing a session ID.
func (g *Generator) GenerateTokenPair(userID, email, tenantID string) (*TokenPair, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	sessionID := uuid.NewString()

	access, expiresAt, err := g.generate(userID, email, sessionID, tenantID, TokenTypeAccess, g.config.AccessTokenDuration)
	if err != nil {
		return nil, err
	}
	refresh, _, err := g.generate(userID, email, sessionID, tenantID, TokenTypeRefresh, g.config.RefreshTokenDuration)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		ExpiresAt:    expiresAt,
	}, nil
}

// RefreshAccessToken validates a refresh token and issues a new access
// token within the same session.
func (g *Generator) RefreshAccessToken(refreshToken string) (string, time.Time, error) {
	claims, err := g.ValidateToken(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", time.Time{}, ErrInvalidTokenType
	}
	return g.generate(claims.UserID, claims.Email, claims.SessionID, claims.TenantID, TokenTypeAccess, g.config.AccessTokenDuration)
}

func (g *Generator) generate(userID, email, sessionID, tenantID string, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		TokenType: tokenType,
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a session token and returns its claims.
func (g *Generator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(g.config.Secret), nil
	}, jwt.WithIssuer(g.config.Issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateAccessToken validates a token and requires it to be an
// access token.
func (g *Generator) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
