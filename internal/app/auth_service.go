package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
	"github.com/buildledger/api/pkg/identity"
	"github.com/buildledger/api/pkg/jwt"
	"github.com/buildledger/api/pkg/logger"
)

// SessionStore is the subset of the redis session store the auth flow
// needs.
type SessionStore interface {
	StoreSession(ctx context.Context, userID, sessionID string, data map[string]string, ttl time.Duration) error
	SessionExists(ctx context.Context, userID, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	RefreshSession(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) error
	ValidateRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// IdentityTokenValidator checks bearer tokens issued by the identity
// provider. Satisfied by identity.Validator.
type IdentityTokenValidator interface {
	ValidateToken(tokenString string) (*identity.Claims, error)
}

// AuthService exchanges identity provider tokens for local sessions.
//
// Clients sign in at the identity provider and trade the resulting
// token here for a slim local pair. Every local session lives in
// redis, so deactivating a member kills their access immediately
// instead of at token expiry.
type AuthService struct {
	validator IdentityTokenValidator
	tokens    *jwt.Generator
	sessions  SessionStore
	users     *UserService
	logger    *logger.Logger

	refreshTTL time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(validator IdentityTokenValidator, tokens *jwt.Generator, sessions SessionStore, users *UserService, refreshTTL time.Duration, log *logger.Logger) *AuthService {
	return &AuthService{
		validator:  validator,
		tokens:     tokens,
		sessions:   sessions,
		users:      users,
		refreshTTL: refreshTTL,
		logger:     log.With("service", "auth"),
	}
}

// Session is what a successful exchange or refresh returns.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *user.Record `json:"-"`
}

// ExchangeToken validates an identity provider token, lazily syncs the
// user record, and issues a local session pair.
func (s *AuthService) ExchangeToken(ctx context.Context, idpToken string) (*Session, error) {
	claims, err := s.validator.ValidateToken(idpToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	identityID, err := shared.IDFromString(claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", shared.ErrUnauthorized)
	}

	record, err := s.users.EnsureUser(ctx, identityID, claims.Email, claims.DisplayName())
	if err != nil {
		return nil, err
	}
	if !record.IsActive() {
		return nil, fmt.Errorf("%w: account is deactivated", shared.ErrUnauthorized)
	}

	tenantID := ""
	if record.HasTenant() {
		tenantID = record.TenantID().String()
	}

	pair, err := s.tokens.GenerateTokenPair(record.ID().String(), record.Email(), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session tokens: %w", err)
	}

	sessionData := map[string]string{
		"email":     record.Email(),
		"tenant_id": tenantID,
		"issued_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.sessions.StoreSession(ctx, record.ID().String(), pair.SessionID, sessionData, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.sessions.StoreRefreshToken(ctx, record.ID().String(), hashToken(pair.RefreshToken), s.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.Info("session issued",
		"user_id", record.ID().String(),
		"session_id", pair.SessionID,
	)

	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         record,
	}, nil
}

// Refresh trades a valid refresh token for a new access token within
// the same session, sliding the session's expiry forward.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	if claims.TokenType != jwt.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", shared.ErrUnauthorized)
	}

	valid, err := s.sessions.ValidateRefreshToken(ctx, claims.UserID, hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to validate refresh token: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("%w: refresh token revoked", shared.ErrUnauthorized)
	}

	record, err := s.users.GetUser(ctx, shared.MustIDFromString(claims.UserID))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", shared.ErrUnauthorized)
		}
		return nil, err
	}
	if !record.IsActive() {
		return nil, fmt.Errorf("%w: account is deactivated", shared.ErrUnauthorized)
	}

	accessToken, expiresAt, err := s.tokens.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	if err := s.sessions.RefreshSession(ctx, claims.UserID, claims.SessionID, s.refreshTTL); err != nil {
		// The new access token works either way; the session just
		// keeps its old expiry.
		s.logger.Warn("failed to slide session expiry",
			"user_id", claims.UserID,
			"session_id", claims.SessionID,
			"error", err,
		)
	}

	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		User:        record,
	}, nil
}

// ValidateAccess checks an access token and confirms its session is
// still alive in redis.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	exists, err := s.sessions.SessionExists(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: session revoked", shared.ErrUnauthorized)
	}

	return claims, nil
}

// Logout tears down the session behind an access token and revokes
// the user's refresh tokens.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if err := s.sessions.DeleteSession(ctx, claims.UserID, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.sessions.RevokeAllRefreshTokens(ctx, claims.UserID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens on logout",
			"user_id", claims.UserID,
			"error", err,
		)
	}

	s.logger.Info("session terminated",
		"user_id", claims.UserID,
		"session_id", claims.SessionID,
	)
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
