package tokenstore

import (
	"context"
	"time"

	"amp-session/internal/common/errors"
	redisclient "amp-session/internal/redis"
	"amp-session/internal/token"
)

// DefaultRedisKey is where the token lives unless configured otherwise
const DefaultRedisKey = "amp:token"

// RedisStore keeps the token in Redis with a TTL matching its expiry, so several processes
// can share one token and Redis discards it once it is useless.
type RedisStore struct {
	client *redisclient.Client
	key    string
	codec  codec
	now    func() time.Time
}

// NewRedisStore stores the token under key
func NewRedisStore(client *redisclient.Client, key string, opts ...Option) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, codec: newCodec(opts), now: time.Now}
}

// Load implements Persister
func (s *RedisStore) Load(ctx context.Context) (*token.Token, error) {
	var rec record
	found, err := s.client.GetJSON(ctx, s.key, &rec)
	if err != nil {
		return nil, errors.StorageError("failed to load token from redis", err).WithContext("key", s.key)
	}
	if !found {
		return nil, nil
	}
	return s.codec.decode(rec)
}

// Save implements Persister. Tokens that are already expired are removed instead.
func (s *RedisStore) Save(ctx context.Context, tok token.Token) error {
	ttl := tok.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx)
	}

	rec, err := s.codec.encode(tok)
	if err != nil {
		return err
	}
	if err := s.client.SetJSON(ctx, s.key, rec, ttl); err != nil {
		return errors.StorageError("failed to save token to redis", err).WithContext("key", s.key)
	}
	return nil
}

// Delete implements Persister
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Delete(ctx, s.key); err != nil {
		return errors.StorageError("failed to delete token from redis", err).WithContext("key", s.key)
	}
	return nil
}
