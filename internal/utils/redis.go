package utils

import (
	"tiny-explorers/internal/config"
	"tiny-explorers/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端
// 约束：未启用时返回 nil，调用方据此跳过共享缓存层
func OpenRedis(c config.Redis) *redis.Client {
	if !c.Enabled || c.Addr == "" {
		return nil
	}
	logger.L().Debug("redis_open", "addr", c.Addr, "db", c.DB)
	return redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Pass, DB: c.DB})
}
