package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "omni-agent/internal/errors"
)

// RedisConfig 描述 Redis 连接参数
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis 基于 go-redis 的缓存实现，可在多个 bot 实例间共享
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis 创建 Redis 缓存并检查连通性
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeCacheFailure, err, "connect redis "+cfg.Address)
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

// NewRedisWithClient 复用已有的 client
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCacheFailure, err, fmt.Sprintf("redis get %s", key))
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeCacheFailure, err, fmt.Sprintf("redis set %s", key))
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
