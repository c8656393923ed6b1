package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"place-boundaries/internal/coastline"
	"place-boundaries/internal/config"
	"place-boundaries/internal/cut"
	"place-boundaries/internal/dataset"
	"place-boundaries/internal/lock"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"
	"place-boundaries/internal/migrate"
	"place-boundaries/internal/pipeline"
	"place-boundaries/internal/sanitize"
	"place-boundaries/internal/sliver"
	"place-boundaries/internal/utils"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// env：一次命令执行期间打开的资源
type env struct {
	store dataset.Store
	redis *redis.Client
	close func()
}

// 文档注释：按 STORE_KIND 打开要素存储，并在配置了 REDIS_HOST 时打开 Redis
// 约束：postgres 存储在打开时确保表结构存在；memory 存储仅在进程内有效，主要用于演练。
func openEnv(cfg *config.Config) (*env, error) {
	e := &env{close: func() {}}
	switch cfg.StoreKind {
	case "memory":
		e.store = dataset.NewMemoryStore()
	case "geojson":
		st, err := dataset.NewGeoJSONStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		e.store = st
	case "postgres":
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, err
		}
		if err := migrate.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		e.store = dataset.AttachPostgres(db)
		e.close = func() { _ = db.Close() }
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
	if e.redis = utils.OpenRedisFromEnv(); e.redis != nil {
		prev := e.close
		e.close = func() { _ = e.redis.Close(); prev() }
	}
	return e, nil
}

func (e *env) coastCache(cfg *config.Config) *coastline.Cache {
	return &coastline.Cache{
		Store: e.store,
		Name:  cfg.CacheName,
		SRID:  cfg.WorkingSRID,
		Source: &coastline.Fetcher{
			URL:           cfg.CoastlineURL,
			SRID:          cfg.WorkingSRID,
			CategoryField: cfg.CategoryField,
			PageSize:      cfg.FetchPageSize,
			MaxAttempts:   cfg.FetchMaxAttempts,
			Backoff:       time.Second,
			Client:        httpClient(cfg.FetchTimeout),
		},
		Redis: e.redis,
	}
}

func runCmd(cfg *config.Config) *cobra.Command {
	var kind, input, output string
	c := &cobra.Command{
		Use:   "run",
		Short: "Full coastal cut: cache, union, sliver fix, sanitize",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return instrument(cfg, "run", kind, func(runID uuid.UUID) error {
				return runCut(cmd.Context(), cfg, runID, kind, input, output)
			})
		},
	}
	c.Flags().StringVar(&kind, "kind", "", "jurisdiction kind: cities or counties")
	c.Flags().StringVar(&input, "input", "", "dissolved boundary dataset name")
	c.Flags().StringVar(&output, "output", "", "output dataset name")
	_ = c.MarkFlagRequired("kind")
	_ = c.MarkFlagRequired("input")
	_ = c.MarkFlagRequired("output")
	return c
}

// 文档注释：run 子命令主体
// 约束：辖区类型与受保护清单坐标系先于任何存储访问校验；锁以命名空间 + 辖区类型为单位，覆盖共享的中间数据集。
func runCut(ctx context.Context, cfg *config.Config, runID uuid.UUID, kind, input, output string) error {
	k, err := cut.ParseKind(kind)
	if err != nil {
		return err
	}
	protected, err := config.LoadProtected(cfg.ProtectedPath)
	if err != nil {
		return err
	}
	if err := protected.CheckSRID(cfg.WorkingSRID); err != nil {
		return err
	}
	e, err := openEnv(cfg)
	if err != nil {
		return err
	}
	defer e.close()

	s := pipeline.Session{RunID: runID, Store: e.store, Namespace: cfg.Namespace}
	if e.redis != nil {
		lk, err := lock.Acquire(ctx, e.redis, lock.Key(cfg.Namespace, string(k)), runID.String(), cfg.LockTTL)
		if err != nil {
			return err
		}
		defer func() { _ = lk.Release(context.Background()) }()
	}

	logger.L().Info("protected_loaded", "version", protected.Version, "fragments", len(protected.Fragments))
	pc := pipeline.Config{
		Coastline: e.coastCache(cfg),
		Exclude: map[cut.Kind][]string{
			cut.KindCities:   cfg.ExcludeFor(string(cut.KindCities)),
			cut.KindCounties: cfg.ExcludeFor(string(cut.KindCounties)),
		},
		WorkingSRID: cfg.WorkingSRID,
		SliverFix:   cfg.SliverFix,
		Sliver:      sliver.Engine{Threshold: cfg.Threshold, Protected: protected.Polygons()},
	}
	_, err = pipeline.CoastalCut(ctx, s, pc, input, kind, output)
	return err
}

func fetchCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Materialize the coastline layer into the working store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return instrument(cfg, "fetch", "", func(uuid.UUID) error {
				e, err := openEnv(cfg)
				if err != nil {
					return err
				}
				defer e.close()
				ds, err := e.coastCache(cfg).Ensure(cmd.Context())
				if err != nil {
					return err
				}
				logger.L().Info("fetch_done", "name", ds.Name, "features", len(ds.Features), "categories", ds.Categories())
				return nil
			})
		},
	}
}

func sanitizeCmd(cfg *config.Config) *cobra.Command {
	var input, output string
	c := &cobra.Command{
		Use:   "sanitize",
		Short: "Strip bookkeeping fields and degenerate records from a dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return instrument(cfg, "sanitize", "", func(uuid.UUID) error {
				e, err := openEnv(cfg)
				if err != nil {
					return err
				}
				defer e.close()
				_, err = sanitize.Run(cmd.Context(), e.store, input, output)
				return err
			})
		},
	}
	c.Flags().StringVar(&input, "input", "", "dataset to clean")
	c.Flags().StringVar(&output, "output", "", "name for the cleaned dataset")
	_ = c.MarkFlagRequired("input")
	_ = c.MarkFlagRequired("output")
	return c
}

func importCmd(cfg *config.Config) *cobra.Command {
	var file, name string
	c := &cobra.Command{
		Use:   "import",
		Short: "Load a GeoJSON FeatureCollection (already in the working SRID) into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return instrument(cfg, "import", "", func(uuid.UUID) error {
				return importFile(cmd.Context(), cfg, file, name)
			})
		},
	}
	c.Flags().StringVar(&file, "file", "", "GeoJSON file")
	c.Flags().StringVar(&name, "name", "", "dataset name")
	_ = c.MarkFlagRequired("file")
	_ = c.MarkFlagRequired("name")
	return c
}

func importFile(ctx context.Context, cfg *config.Config, file, name string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return err
	}
	ds, skipped := dataset.FromGeoJSON(name, cfg.WorkingSRID, fc.Features, cfg.CategoryField)
	e, err := openEnv(cfg)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.store.Save(ctx, ds); err != nil {
		return err
	}
	logger.L().Info("import_done", "name", name, "features", len(ds.Features), "skipped", skipped)
	return nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: logger.AccessTransport(logger.L(), nil)}
}

// 文档注释：执行一次子命令并上报结果
// 约束：先记录 <command>_error 事件并累加 boundaries_runs_total，再推送 Pushgateway，推送内容因此包含本次结果。
func instrument(cfg *config.Config, command, kind string, fn func(runID uuid.UUID) error) error {
	runID := uuid.New()
	err := fn(runID)
	status := "ok"
	if err != nil {
		status = "error"
		logger.L().Error(command+"_error", "run_id", runID.String(), "kind", kind, "err", err)
	}
	metrics.RunsTotal.WithLabelValues(command, kind, status).Inc()
	pushMetrics(cfg, runID.String())
	return err
}

func pushMetrics(cfg *config.Config, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, "coastal_cut", runID); err != nil {
		logger.L().Warn("metrics_push_error", "err", err)
	}
}
