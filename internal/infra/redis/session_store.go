package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionStore keeps admin sessions in Redis so a restart does not log the
// operator out. Expiry rides on the key TTL; no janitor needed.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, log: log}
}

func (s *SessionStore) Create(ctx context.Context) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *SessionStore) Valid(ctx context.Context, token string) bool {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		// Fail closed: an unreachable session backend must not open the
		// admin surface.
		s.log.Warn("session lookup failed", zap.Error(err))
		return false
	}
	return n == 1
}

func (s *SessionStore) Revoke(ctx context.Context, token string) {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		s.log.Warn("session revoke failed", zap.Error(err))
	}
}

func (s *SessionStore) key(token string) string {
	return "admin:session:" + token
}
