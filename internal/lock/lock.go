// 包 lock：基于 Redis 的跨主机运行互斥
package lock

import (
	"context"
	"errors"
	"time"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/logger"

	"github.com/redis/go-redis/v9"
)

// ErrHeld：锁已被其他运行持有
var ErrHeld = errors.New("lock: held by another run")

// 仅当值仍为本次运行的 token 时删除，避免误删他人在 TTL 过期后取得的锁
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock：一次持有
type Lock struct {
	rc    *redis.Client
	key   string
	token string
}

// Key：以命名空间 + 辖区类型作为互斥单位
// 约束：同一类型的中间数据集（coastal_select_*、coastal_union_*）在命名空间内共享，不同输出名也必须互斥
func Key(ns, kind string) string { return "coastal-cut:lock:" + dataset.Namespaced(ns, kind) }

// 文档注释：尝试获取锁（SET NX + TTL）
// 约束：不等待；已被持有时返回 ErrHeld。token 通常为运行 ID。
func Acquire(ctx context.Context, rc *redis.Client, key, token string, ttl time.Duration) (*Lock, error) {
	ok, err := rc.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		holder, _ := rc.Get(ctx, key).Result()
		logger.L().Warn("lock_held", "key", key, "holder", holder)
		return nil, ErrHeld
	}
	logger.L().Debug("lock_acquired", "key", key, "ttl_s", int(ttl.Seconds()))
	return &Lock{rc: rc, key: key, token: token}, nil
}

// Release：释放本次持有的锁；已过期或被他人持有时不做任何事
func (l *Lock) Release(ctx context.Context) error {
	n, err := release.Run(ctx, l.rc, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	logger.L().Debug("lock_released", "key", l.key, "deleted", n)
	return nil
}
