package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ctf-scoreboard/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore maps opaque session ids to user ids with a fixed lifetime
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionStore creates a session store on top of client
func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// sessionKey returns the Redis key for a session id
func (s *SessionStore) sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Create opens a new session for userID and returns its id
func (s *SessionStore) Create(ctx context.Context, userID domain.UserID) (string, error) {
	sessionID := uuid.NewString()
	err := s.client.Set(ctx, s.sessionKey(sessionID), int64(userID), s.ttl).Err()
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return sessionID, nil
}

// Get resolves a session id to its user
func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.UserID, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return 0, domain.ErrSessionNotFound
	}

	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting session: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.logger.Warn("corrupt session value", "session_id", sessionID, "error", err)
		return 0, domain.ErrSessionNotFound
	}
	return domain.UserID(id), nil
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
