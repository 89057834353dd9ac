package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps each log in a Redis list. Redis enforces expiry.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func logKey(userID string) string { return "user:" + userID + ":messages" }

func (r *RedisBackend) Append(ctx context.Context, userID string, entry []byte, expireAt time.Time) error {
	key := logKey(userID)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, entry)
		if !expireAt.IsZero() {
			p.ExpireAt(ctx, key, expireAt)
		}
		return nil
	})
	return err
}

func (r *RedisBackend) ReadAll(ctx context.Context, userID string) ([][]byte, error) {
	vals, err := r.rdb.LRange(ctx, logKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *RedisBackend) Close() error { return r.rdb.Close() }
