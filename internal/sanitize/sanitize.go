// 包 sanitize：输出清理（去除叠加簿记字段、丢弃退化面、规范化类别空值）
package sanitize

import (
	"context"
	"strings"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/geom"
	"place-boundaries/internal/logger"
)

// MinArea：面积不超过该值的记录视为叠加产生的退化面
const MinArea = 1.0

// StripBookkeeping：删除 FID_ 前缀的簿记字段
func StripBookkeeping(f *dataset.Feature) {
	for k := range f.Attrs {
		if strings.HasPrefix(k, dataset.BookkeepingPrefix) {
			delete(f.Attrs, k)
		}
	}
}

// Degenerate：三个标识属性全为空，或面积不超过 MinArea
func Degenerate(f dataset.Feature) bool {
	if !f.HasIdentity() {
		return true
	}
	return geom.MultiArea(f.Geometry) <= MinArea
}

// NormalizeCategory：空串类别转为真正的空值（陆地）
func NormalizeCategory(f *dataset.Feature) {
	if f.Category != nil && *f.Category == "" {
		f.Category = nil
	}
}

// 文档注释：清理整个数据集
// 背景：叠加阶段与最终输出前都需要同一套清理；顺序固定为 去簿记字段 → 过滤退化面 → 类别空值规范化。
// 约束：纯函数，不修改输入；对同一输入重复执行结果一致（幂等）。
func Sanitize(ds *dataset.Dataset) *dataset.Dataset {
	out := &dataset.Dataset{Name: ds.Name, SRID: ds.SRID, Features: make([]dataset.Feature, 0, len(ds.Features))}
	dropped := 0
	for _, f := range ds.Features {
		c := f.Clone()
		StripBookkeeping(&c)
		if Degenerate(c) {
			dropped++
			continue
		}
		NormalizeCategory(&c)
		out.Features = append(out.Features, c)
	}
	logger.L().Debug("sanitize_done", "name", ds.Name, "kept", len(out.Features), "dropped", dropped)
	return out
}

// Run：从存储读取 in，清理后写为 out
func Run(ctx context.Context, st dataset.Store, in, out string) (*dataset.Dataset, error) {
	ds, err := st.Load(ctx, in)
	if err != nil {
		return nil, err
	}
	clean := Sanitize(ds)
	clean.Name = out
	if err := st.Save(ctx, clean); err != nil {
		return nil, err
	}
	return clean, nil
}
