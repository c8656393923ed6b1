// 包 pipeline：一次完整的海岸线切割运行
// 背景：显式会话句柄取代隐式全局工作空间；各阶段产物以固定名（可加命名空间前缀）存入会话存储。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"place-boundaries/internal/cut"
	"place-boundaries/internal/dataset"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"
	"place-boundaries/internal/sanitize"
	"place-boundaries/internal/sliver"

	"github.com/google/uuid"
)

// Session：一次运行的上下文
type Session struct {
	RunID     uuid.UUID
	Store     dataset.Store
	Namespace string
}

// NewSession：生成新的运行 ID
func NewSession(st dataset.Store, ns string) Session {
	return Session{RunID: uuid.New(), Store: st, Namespace: ns}
}

// UnionName：叠加阶段中间产物名
func (s Session) UnionName(kind cut.Kind) string {
	return dataset.Namespaced(s.Namespace, "coastal_union_"+string(kind))
}

// Config：切割参数
type Config struct {
	Coastline   cut.CoastlineProvider
	Exclude     map[cut.Kind][]string
	WorkingSRID int
	SliverFix   bool
	Sliver      sliver.Engine
}

// Result：最终数据集与碎片修复统计（未启用修复时 Report 为零值）
type Result struct {
	Dataset *dataset.Dataset
	Report  sliver.Report
}

// 文档注释：海岸线切割（单次原子调用）
// 背景：缓存 → 叠加 → （可选）碎片修复 → 清理 → 写出最终数据集；每个阶段耗时记入 boundaries_stage_duration_seconds。
// 约束：辖区类型非法时不读不写；取消只在阶段边界生效；任一阶段失败时不写最终输出。
func CoastalCut(ctx context.Context, s Session, cfg Config, boundaryName, kind, outputName string) (*Result, error) {
	l := logger.L().With("run_id", s.RunID.String())
	k, err := cut.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	boundary, err := s.Store.Load(ctx, boundaryName)
	if err != nil {
		return nil, fmt.Errorf("load boundary %q: %w", boundaryName, err)
	}
	l.Info("coastal_cut_begin", "kind", k, "boundary", boundaryName, "output", outputName, "sliver_fix", cfg.SliverFix)

	stage := &cut.Stage{
		Coastline:   cfg.Coastline,
		Exclude:     cfg.Exclude,
		WorkingSRID: cfg.WorkingSRID,
		Namespace:   s.Namespace,
	}
	union := s.UnionName(k)
	if err := timed("union", func() error {
		_, err := stage.Run(ctx, s.Store, boundary, k, union)
		return err
	}); err != nil {
		return nil, err
	}

	var rep sliver.Report
	if cfg.SliverFix {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := timed("sliver", func() error {
			var err error
			rep, err = cfg.Sliver.Run(ctx, s.Store, union)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var final *dataset.Dataset
	if err := timed("sanitize", func() error {
		var err error
		final, err = sanitize.Run(ctx, s.Store, union, outputName)
		return err
	}); err != nil {
		return nil, err
	}
	l.Info("coastal_cut_done", "kind", k, "output", outputName, "features", len(final.Features),
		"relocated", rep.Relocated, "protected", rep.Protected)
	return &Result{Dataset: final, Report: rep}, nil
}

func timed(stage string, fn func() error) error {
	t0 := time.Now()
	err := fn()
	metrics.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(t0).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}
