package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buildledger/api/pkg/logger"
)

const (
	prefixSession      = "session"
	prefixRefreshToken = "refresh"
)

// SessionStore tracks active sessions and refresh tokens. A session
// exists here from sign-in until logout or revocation; access tokens
// whose session is gone are rejected by the auth middleware, which is
// how deactivating a member cuts off their in-flight tokens.
type SessionStore struct {
	client *Client
	logger *logger.Logger
}

// NewSessionStore creates a new session store.
func NewSessionStore(client *Client, log *logger.Logger) (*SessionStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &SessionStore{
		client: client,
		logger: log,
	}, nil
}

// MustNewSessionStore creates a session store or panics on error.
func MustNewSessionStore(client *Client, log *logger.Logger) *SessionStore {
	ss, err := NewSessionStore(client, log)
	if err != nil {
		panic(fmt.Sprintf("failed to create session store: %v", err))
	}
	return ss
}

// StoreSession stores a user session atomically.
func (ss *SessionStore) StoreSession(ctx context.Context, userID, sessionID string, data map[string]string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if sessionID == "" {
		return errors.New("sessionID is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixSession, userID, sessionID)
	userSessionsKey := fmt.Sprintf("%s:%s:all", prefixSession, userID)

	pipe := ss.client.client.TxPipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, userSessionsKey, sessionID)
	pipe.Expire(ctx, userSessionsKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	ss.logger.Debug("session stored", "user_id", userID, "session_id", sessionID)
	return nil
}

// GetSession retrieves a user session.
func (ss *SessionStore) GetSession(ctx context.Context, userID, sessionID string) (map[string]string, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	if sessionID == "" {
		return nil, errors.New("sessionID is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixSession, userID, sessionID)

	data, err := ss.client.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}

	return data, nil
}

// SessionExists reports whether a session is still live.
func (ss *SessionStore) SessionExists(ctx context.Context, userID, sessionID string) (bool, error) {
	if userID == "" {
		return false, errors.New("userID is required")
	}
	if sessionID == "" {
		return false, errors.New("sessionID is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixSession, userID, sessionID)

	n, err := ss.client.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return n > 0, nil
}

// DeleteSession removes a user session atomically.
func (ss *SessionStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixSession, userID, sessionID)
	userSessionsKey := fmt.Sprintf("%s:%s:all", prefixSession, userID)

	pipe := ss.client.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, userSessionsKey, sessionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	ss.logger.Debug("session deleted", "user_id", userID, "session_id", sessionID)
	return nil
}

// deleteAllFromSet deletes every member of a set and its associated
// keys in one transaction.
func (ss *SessionStore) deleteAllFromSet(ctx context.Context, setKey, keyPrefix, userID, operationName string) (int, error) {
	members, err := ss.client.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", operationName, err)
	}

	if len(members) == 0 {
		return 0, nil
	}

	pipe := ss.client.client.TxPipeline()
	for _, member := range members {
		pipe.Del(ctx, fmt.Sprintf("%s:%s:%s", keyPrefix, userID, member))
	}
	pipe.Del(ctx, setKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete %s: %w", operationName, err)
	}

	return len(members), nil
}

// DeleteAllUserSessions removes all sessions for a user atomically.
// Called when a member is deactivated or their permissions change.
func (ss *SessionStore) DeleteAllUserSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}

	userSessionsKey := fmt.Sprintf("%s:%s:all", prefixSession, userID)
	count, err := ss.deleteAllFromSet(ctx, userSessionsKey, prefixSession, userID, "user sessions")
	if err != nil {
		return err
	}

	if count > 0 {
		ss.logger.Info("all sessions deleted", "user_id", userID, "count", count)
	}
	return nil
}

// refreshSessionScript atomically checks session existence and extends TTL.
var refreshSessionScript = redis.NewScript(`
	local session_key = KEYS[1]
	local user_sessions_key = KEYS[2]
	local ttl_ms = tonumber(ARGV[1])

	local exists = redis.call('EXISTS', session_key)
	if exists == 0 then
		return 0
	end

	redis.call('PEXPIRE', session_key, ttl_ms)
	redis.call('PEXPIRE', user_sessions_key, ttl_ms)

	return 1
`)

// RefreshSession extends the TTL of a session atomically.
func (ss *SessionStore) RefreshSession(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if sessionID == "" {
		return errors.New("sessionID is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixSession, userID, sessionID)
	userSessionsKey := fmt.Sprintf("%s:%s:all", prefixSession, userID)

	result, err := refreshSessionScript.Run(ctx, ss.client.client,
		[]string{key, userSessionsKey},
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	if result == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// --- Refresh tokens ---

// StoreRefreshToken stores a refresh token hash atomically.
func (ss *SessionStore) StoreRefreshToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if tokenHash == "" {
		return errors.New("tokenHash is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, tokenHash)
	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	pipe := ss.client.client.TxPipeline()
	pipe.Set(ctx, key, "1", ttl)
	pipe.SAdd(ctx, userTokensKey, tokenHash)
	pipe.Expire(ctx, userTokensKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	ss.logger.Debug("refresh token stored", "user_id", userID)
	return nil
}

// ValidateRefreshToken checks if a refresh token is valid.
func (ss *SessionStore) ValidateRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error) {
	if userID == "" {
		return false, errors.New("userID is required")
	}
	if tokenHash == "" {
		return false, errors.New("tokenHash is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, tokenHash)

	exists, err := ss.client.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("validate refresh token: %w", err)
	}

	return exists > 0, nil
}

// RotateRefreshToken atomically revokes the old token and stores the new one.
func (ss *SessionStore) RotateRefreshToken(ctx context.Context, userID, oldTokenHash, newTokenHash string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if oldTokenHash == "" {
		return errors.New("oldTokenHash is required")
	}
	if newTokenHash == "" {
		return errors.New("newTokenHash is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	oldKey := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, oldTokenHash)
	newKey := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, newTokenHash)
	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	pipe := ss.client.client.TxPipeline()
	pipe.Del(ctx, oldKey)
	pipe.SRem(ctx, userTokensKey, oldTokenHash)
	pipe.Set(ctx, newKey, "1", ttl)
	pipe.SAdd(ctx, userTokensKey, newTokenHash)
	pipe.Expire(ctx, userTokensKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	ss.logger.Debug("refresh token rotated", "user_id", userID)
	return nil
}

// RevokeAllRefreshTokens revokes all refresh tokens for a user atomically.
func (ss *SessionStore) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}

	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)
	count, err := ss.deleteAllFromSet(ctx, userTokensKey, prefixRefreshToken, userID, "refresh tokens")
	if err != nil {
		return err
	}

	if count > 0 {
		ss.logger.Info("all refresh tokens revoked", "user_id", userID, "count", count)
	}
	return nil
}

// CountActiveSessions returns the number of active sessions for a user.
func (ss *SessionStore) CountActiveSessions(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("userID is required")
	}

	userSessionsKey := fmt.Sprintf("%s:%s:all", prefixSession, userID)

	count, err := ss.client.client.SCard(ctx, userSessionsKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("count sessions: %w", err)
	}

	return count, nil
}
