// Package cache 短时缓存上游响应（价格、新闻），避免重复问题反复请求上游
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.New("cache: miss")

// Cache 按键存储原始字节，每条带 TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Nop 不缓存
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Close() error { return nil }

// Options 后端选择与容量
type Options struct {
	Driver     string // "memory", "redis" or "none"
	MaxEntries int
	MaxTTL     time.Duration
	Redis      RedisConfig
}

// New 按 opts.Driver 创建后端
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(opts.MaxEntries, opts.MaxTTL), nil
	case "redis":
		r, err := NewRedis(ctx, opts.Redis)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", opts.Driver)
	}
}
