// 包 sliver：海岸线切割后的碎片修复
// 背景：边界线与海岸线近乎重合并反复交叉时，叠加会在同名要素之间产生细碎面；此包按地名分组，
// 把面积低于阈值且与另一成员大面相接的碎片迁移过去，已知真实小岛（受保护几何）保持不动。
package sliver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/geom"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"

	"github.com/paulmach/orb"
)

// ErrGroupTooLarge：同一 LEGAL_PLACE_NAME 超过 3 个成员，整次修复失败且不写回
var ErrGroupTooLarge = errors.New("sliver: legal place name group has more than 3 members")

// DefaultThreshold：碎片候选面积阈值（工作坐标系平方米）
const DefaultThreshold = 100000.0

// maxGroup：一块陆地加至多两块互不相连的海岸缓冲区
const maxGroup = 3

// Engine：碎片修复参数
type Engine struct {
	Threshold float64
	Protected []orb.Polygon
}

// Report：一次修复的统计
type Report struct {
	Groups    map[int]int
	Relocated int
	Protected int
}

func (r *Report) add(o Report) {
	r.Relocated += o.Relocated
	r.Protected += o.Protected
}

// 文档注释：三段式执行（读全量 → 内存计算 → 按 ID 一次写回）
// 背景：读取游标与写入不得交错；全部几何改动在内存中算完后才提交。
// 约束：任一分组超过 3 个成员时直接失败，不写回任何内容。
func (e *Engine) Run(ctx context.Context, st dataset.Store, name string) (Report, error) {
	l := logger.L()
	ds, err := st.Load(ctx, name)
	if err != nil {
		return Report{}, err
	}
	l.Debug("sliver_loaded", "name", name, "features", len(ds.Features))
	updated, rep, err := e.Reconcile(ds.Features)
	if err != nil {
		return rep, err
	}
	changed := changedOnly(ds.Features, updated)
	if len(changed) == 0 {
		l.Info("sliver_done", "name", name, "relocated", 0)
		return rep, nil
	}
	if err := st.Update(ctx, name, changed); err != nil {
		return rep, fmt.Errorf("sliver commit: %w", err)
	}
	l.Info("sliver_done", "name", name, "relocated", rep.Relocated, "protected", rep.Protected, "updated", len(changed))
	return rep, nil
}

// 文档注释：纯内存修复
// 背景：按 LEGAL_PLACE_NAME 分组，组内成员按要素 ID 排序；2 成员组检查 (a,b)(b,a)，3 成员组对三个无序对逐个双向检查，
// 每一步都基于上一步的最新几何。单成员组原样返回。
// 约束：返回新切片，输入不被修改。
func (e *Engine) Reconcile(fs []dataset.Feature) ([]dataset.Feature, Report, error) {
	rep := Report{Groups: map[int]int{}}
	out := make([]dataset.Feature, len(fs))
	groups := map[string][]int{}
	var names []string
	for i, f := range fs {
		out[i] = f.Clone()
		if f.LegalPlaceName == "" {
			// 无法定地名的要素各自成组
			rep.Groups[1]++
			metrics.SliverGroupsTotal.WithLabelValues("1").Inc()
			continue
		}
		if _, ok := groups[f.LegalPlaceName]; !ok {
			names = append(names, f.LegalPlaceName)
		}
		groups[f.LegalPlaceName] = append(groups[f.LegalPlaceName], i)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(groups[name]) > maxGroup {
			return nil, rep, fmt.Errorf("%w: %q has %d members", ErrGroupTooLarge, name, len(groups[name]))
		}
	}
	for _, name := range names {
		idx := groups[name]
		sort.Slice(idx, func(a, b int) bool { return out[idx[a]].ID < out[idx[b]].ID })
		rep.Groups[len(idx)]++
		metrics.SliverGroupsTotal.WithLabelValues(strconv.Itoa(len(idx))).Inc()
		if len(idx) < 2 {
			continue
		}
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				pa, pb := &out[idx[a]], &out[idx[b]]
				r1, err := e.checkParts(pa, pb)
				if err != nil {
					return nil, rep, fmt.Errorf("group %q: %w", name, err)
				}
				r2, err := e.checkParts(pb, pa)
				if err != nil {
					return nil, rep, fmt.Errorf("group %q: %w", name, err)
				}
				rep.add(r1)
				rep.add(r2)
			}
		}
	}
	metrics.SliverRelocatedTotal.Add(float64(rep.Relocated))
	metrics.SliverProtectedTotal.Add(float64(rep.Protected))
	return out, rep, nil
}

// 文档注释：单向检查 source → target
// 背景：面积 ≥ 阈值的 Part 视为合法水体/陆地，跳过；低于阈值但与任一受保护几何相交的跳过；
// 其余候选按 target 原有 Part 顺序找第一个面积 > 阈值且与之相接的 Part，命中即标记（首个命中，不比较大小或距离）。
// 约束：扫描期间不改几何；扫描结束后逐个把标记的 Part 并入 target、从 source 中扣除。
func (e *Engine) checkParts(source, target *dataset.Feature) (Report, error) {
	var rep Report
	var swaps []orb.Polygon
	for _, part := range source.Geometry {
		if geom.Area(part) >= e.Threshold {
			continue
		}
		keep, err := e.protected(part)
		if err != nil {
			return rep, err
		}
		if keep {
			rep.Protected++
			continue
		}
		for _, tp := range target.Geometry {
			if geom.Area(tp) <= e.Threshold {
				continue
			}
			touches, err := geom.Touches(part, tp)
			if err != nil {
				return rep, err
			}
			if touches {
				swaps = append(swaps, part)
				break
			}
		}
	}
	for _, sw := range swaps {
		t, err := geom.Union(target.Geometry, sw)
		if err != nil {
			return rep, err
		}
		s, err := geom.Difference(source.Geometry, sw)
		if err != nil {
			return rep, err
		}
		target.Geometry, source.Geometry = t, s
		rep.Relocated++
		logger.L().Debug("sliver_relocated", "name", source.LegalPlaceName, "from", source.ID, "to", target.ID, "area", geom.Area(sw))
	}
	return rep, nil
}

func (e *Engine) protected(part orb.Polygon) (bool, error) {
	for _, p := range e.Protected {
		disjoint, err := geom.Disjoint(part, p)
		if err != nil {
			return false, err
		}
		if !disjoint {
			return true, nil
		}
	}
	return false, nil
}

// changedOnly：只写回几何发生变化的要素
func changedOnly(before, after []dataset.Feature) []dataset.Feature {
	var out []dataset.Feature
	for i := range after {
		if !orb.Equal(before[i].Geometry, after[i].Geometry) {
			out = append(out, after[i])
		}
	}
	return out
}
