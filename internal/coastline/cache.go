// 包 coastline：海岸线图层的本地物化与共享缓存
// 背景：远端图层只需拉取一次；之后所有运行都从工作存储中的固定名数据集读取。
package coastline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Source：远端图层来源，Fetcher 为默认实现
type Source interface {
	Fetch(ctx context.Context, name string) (*dataset.Dataset, error)
}

// Cache：三级来源（工作存储 → Redis → 远端）
type Cache struct {
	Store  dataset.Store
	Name   string
	SRID   int
	Source Source
	Redis  *redis.Client
	TTL    time.Duration
}

// RedisKey：共享缓存键，带坐标系以免不同投影互相覆盖
func (c *Cache) RedisKey() string {
	return fmt.Sprintf("coastline:%s:%d", c.Name, c.SRID)
}

// 文档注释：确保海岸线数据集存在并返回
// 背景：工作存储已有固定名数据集时直接读取，不发生任何网络 I/O；否则依次尝试 Redis 与远端，并把结果写回工作存储（与 Redis）。
// 约束：Redis 读写失败只记录日志不中断；远端失败则整体失败，工作存储不写入半成品。
func (c *Cache) Ensure(ctx context.Context) (*dataset.Dataset, error) {
	l := logger.L()
	ok, err := c.Store.Exists(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	if ok {
		ds, err := c.Store.Load(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		metrics.CoastlineLoadsTotal.WithLabelValues("store").Inc()
		l.Debug("coastline_cache_hit", "source", "store", "features", len(ds.Features))
		return ds, nil
	}
	if ds := c.fromRedis(ctx); ds != nil {
		if err := c.Store.Save(ctx, ds); err != nil {
			return nil, err
		}
		metrics.CoastlineLoadsTotal.WithLabelValues("redis").Inc()
		l.Info("coastline_cache_hit", "source", "redis", "features", len(ds.Features))
		return ds, nil
	}
	if c.Source == nil {
		return nil, ErrNoSource
	}
	ds, err := c.Source.Fetch(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Save(ctx, ds); err != nil {
		return nil, err
	}
	metrics.CoastlineLoadsTotal.WithLabelValues("remote").Inc()
	c.toRedis(ctx, ds)
	l.Info("coastline_materialized", "name", c.Name, "features", len(ds.Features))
	return ds, nil
}

func (c *Cache) fromRedis(ctx context.Context) *dataset.Dataset {
	if c.Redis == nil {
		return nil
	}
	b, err := c.Redis.Get(ctx, c.RedisKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("coastline_redis_get_error", "err", err)
		}
		return nil
	}
	ds, err := dataset.Decode(c.Name, b)
	if err != nil {
		logger.L().Warn("coastline_redis_decode_error", "err", err)
		return nil
	}
	return ds
}

func (c *Cache) toRedis(ctx context.Context, ds *dataset.Dataset) {
	if c.Redis == nil {
		return
	}
	b, err := dataset.Encode(ds)
	if err != nil {
		logger.L().Warn("coastline_redis_encode_error", "err", err)
		return
	}
	if err := c.Redis.Set(ctx, c.RedisKey(), b, c.TTL).Err(); err != nil {
		logger.L().Warn("coastline_redis_set_error", "err", err)
	}
}
