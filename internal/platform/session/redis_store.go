package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store backing, so session state survives
// process restarts and is shared across replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client, namespacing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(token string) string { return r.prefix + token }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	return r.save(ctx, s)
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.IsExpired() {
		_ = r.Delete(ctx, token)
		return nil, ErrExpired
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	return r.save(ctx, s)
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}

func (r *RedisStore) save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(s.Token), raw, ttl).Err()
}
