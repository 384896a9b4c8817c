package contexts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV — сетевая реализация KV поверх go-redis.
// Ошибки не глотаются и не ретраятся здесь: стор сам решает, как деградировать
// (BackendUnavailable -> работа только с RAM на этот вызов).
type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// ttl == 0 для go-redis означает "без истечения" — ровно наша семантика
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) AddToSet(ctx context.Context, setKey, member string) error {
	if err := r.rdb.SAdd(ctx, setKey, member).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", setKey, err)
	}
	return nil
}

func (r *RedisKV) RemoveFromSet(ctx context.Context, setKey, member string) error {
	if err := r.rdb.SRem(ctx, setKey, member).Err(); err != nil {
		return fmt.Errorf("redis srem %s: %w", setKey, err)
	}
	return nil
}

func (r *RedisKV) MembersOf(ctx context.Context, setKey string) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", setKey, err)
	}
	return members, nil
}
