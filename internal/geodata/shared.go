package geodata

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tiny-explorers/internal/logger"
)

// SharedCache：跨进程共享的原始载荷缓存层
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
}

// 文档注释：Redis 原始载荷缓存
// 背景：多实例部署时避免每个进程都回源拉取大体积数据集。
// 约束：读写失败只记录日志并视为未命中，不影响加载主流程。
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{rc: rc, ttl: ttl}
}

func rawKey(u string) string { return "geodata:raw:" + u }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rc.Get(ctx, rawKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("map_redis_get_error", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte) {
	if err := c.rc.Set(ctx, rawKey(key), data, c.ttl).Err(); err != nil {
		logger.L().Warn("map_redis_set_error", "key", key, "err", err)
	}
}
