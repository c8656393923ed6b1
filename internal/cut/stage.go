// 包 cut：海岸线叠加阶段（按辖区类型筛选海岸线面，与边界数据叠加并做叠加后清理）
package cut

import (
	"context"
	"fmt"
	"strings"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"
	"place-boundaries/internal/sanitize"
)

// Kind：辖区类型
type Kind string

const (
	KindCities   Kind = "cities"
	KindCounties Kind = "counties"
)

// ParseKind：只接受 cities/counties
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCities, KindCounties:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: got %q", ErrUnknownKind, s)
}

// CoastlineProvider：海岸线数据来源（本地缓存优先）
type CoastlineProvider interface {
	Ensure(ctx context.Context) (*dataset.Dataset, error)
}

// 文档注释：海岸线叠加阶段
// 背景：城市需同时排除 ocean 与 bay，县只排除 ocean（县界保留海湾部分）；被“排除”的类别正是要从辖区中切出的水域面，
// 因此筛选条件为“类别属于排除集合”。
// 约束：输入均须处于工作坐标系；排除类别必须在海岸线数据中实际出现，否则视为上游配置错误直接失败；不修改输入数据集。
type Stage struct {
	Coastline   CoastlineProvider
	Exclude     map[Kind][]string
	WorkingSRID int
	Namespace   string
}

// SelectName：筛选结果的固定数据集名
func (s *Stage) SelectName(kind Kind) string {
	return dataset.Namespaced(s.Namespace, "coastal_select_"+string(kind))
}

// Run：执行筛选 + 叠加 + 清理，并把结果写入 output
func (s *Stage) Run(ctx context.Context, st dataset.Store, boundary *dataset.Dataset, kind Kind, output string) (*dataset.Dataset, error) {
	l := logger.L()
	exclude, ok := s.Exclude[kind]
	if !ok || len(exclude) == 0 {
		return nil, fmt.Errorf("%w: got %q", ErrUnknownKind, kind)
	}
	if boundary.SRID != s.WorkingSRID {
		return nil, fmt.Errorf("%w: %q has srid %d, want %d", ErrSRIDMismatch, boundary.Name, boundary.SRID, s.WorkingSRID)
	}
	coast, err := s.Coastline.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("coastline: %w", err)
	}
	if coast.SRID != s.WorkingSRID {
		return nil, fmt.Errorf("%w: %q has srid %d, want %d", ErrSRIDMismatch, coast.Name, coast.SRID, s.WorkingSRID)
	}
	if err := ValidateCategories(coast, exclude); err != nil {
		return nil, err
	}

	l.Debug("coastal_select", "kind", kind, "exclude", strings.Join(exclude, ","))
	sel := Select(coast, exclude)
	sel.Name = s.SelectName(kind)
	if err := st.Save(ctx, sel); err != nil {
		return nil, err
	}

	l.Debug("union_begin", "boundary", boundary.Name, "boundary_features", len(boundary.Features), "coastline_features", len(sel.Features))
	recs, err := Overlay(boundary, sel)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	metrics.UnionRecordsTotal.WithLabelValues(string(kind)).Add(float64(len(recs)))
	raw := &dataset.Dataset{Name: output, SRID: s.WorkingSRID, Features: recs}
	out := sanitize.Sanitize(raw)
	if err := st.Save(ctx, out); err != nil {
		return nil, err
	}
	l.Info("union_done", "output", output, "records", len(recs), "kept", len(out.Features))
	return out, nil
}

// ValidateCategories：每个排除类别都必须在海岸线数据中出现
func ValidateCategories(coast *dataset.Dataset, exclude []string) error {
	seen := map[string]bool{}
	for _, c := range coast.Categories() {
		seen[c] = true
	}
	var missing []string
	for _, e := range exclude {
		if !seen[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s, observed %s", ErrCategoryMissing,
			strings.Join(missing, ","), strings.Join(coast.Categories(), ","))
	}
	return nil
}

// Select：类别属于排除集合的海岸线面
func Select(coast *dataset.Dataset, exclude []string) *dataset.Dataset {
	in := map[string]bool{}
	for _, e := range exclude {
		in[e] = true
	}
	out := &dataset.Dataset{Name: coast.Name, SRID: coast.SRID}
	for _, f := range coast.Features {
		if in[f.CategoryValue()] {
			out.Features = append(out.Features, f.Clone())
		}
	}
	return out
}
