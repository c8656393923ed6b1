package utils

import (
	"os"
	"strconv"

	"place-boundaries/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：使用地址与密码打开 Redis 客户端；地址为空返回 nil
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// OpenRedisFromEnv：REDIS_HOST 未设置时返回 nil（共享缓存与运行锁均为可选）
// 约束：REDIS_DB 解析失败或为负时回退到 0
func OpenRedisFromEnv() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil
	}
	addr := host + ":" + envOr("REDIS_PORT", "6379")
	db := 0
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && n >= 0 {
		db = n
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
