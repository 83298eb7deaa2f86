package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tokengate/tokengate/token/refresh"
)

const tokenPrefix = "refresh:"

var _ refresh.Repo = (*RedisRefreshTokenRepo)(nil)

// RedisRefreshTokenRepo keeps the valid-refresh-token set in Redis, keyed by
// token hash with TTL-based eviction. Any server instance can validate,
// rotate, or revoke a token, and outstanding sessions survive a process
// restart.
type RedisRefreshTokenRepo struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisRefreshTokenRepo {
	return &RedisRefreshTokenRepo{client: client}
}

func (tr *RedisRefreshTokenRepo) Save(ctx context.Context, rec *refresh.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token expiration time must be in the future")
	}

	key := tokenPrefix + rec.TokenHash
	if err := tr.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token to Redis: %w", err)
	}

	return nil
}

// Take claims the token with GETDEL, so of two concurrent rotation attempts
// only one observes the value.
func (tr *RedisRefreshTokenRepo) Take(ctx context.Context, tokenHash string) (*refresh.Record, error) {
	key := tokenPrefix + tokenHash

	data, err := tr.client.GetDel(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take refresh token from Redis: %w", err)
	}

	var rec refresh.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh record: %w", err)
	}

	return &rec, nil
}

func (tr *RedisRefreshTokenRepo) Delete(ctx context.Context, tokenHash string) error {
	key := tokenPrefix + tokenHash

	deleted, err := tr.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete refresh token from Redis: %w", err)
	}
	if deleted == 0 {
		return refresh.ErrNotFound
	}

	return nil
}
