package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/good-yellow-bee/slate/internal/logging"
)

const (
	redisKeyPrefix = "slate:session:"
	redisTimeout   = 3 * time.Second
)

// RedisStore keeps sessions in Redis with TTL so that several server
// instances share logins.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisStore builds a Redis-backed session store on an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logging.New("session"),
	}
}

func (s *RedisStore) Create(userID, email, name string, superuser bool) (*Session, error) {
	session, err := newSession(userID, email, name, superuser, s.ttl)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := s.client.Set(ctx, redisKeyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
		return nil, err
	}
	return session, nil
}

// Get treats Redis errors as a missing session.
func (s *RedisStore) Get(id string) (*Session, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warnw("session lookup failed", "error", err)
		return nil, false
	}

	var session Session
	if err := json.Unmarshal(val, &session); err != nil {
		s.logger.Warnw("corrupt session payload", "error", err)
		return nil, false
	}
	return &session, true
}

func (s *RedisStore) Delete(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warnw("session delete failed", "error", err)
	}
}

func (s *RedisStore) TTL() time.Duration {
	return s.ttl
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
