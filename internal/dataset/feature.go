// 包 dataset：要素与数据集模型，以及按稳定要素 ID 寻址的要素存储
package dataset

import (
	"sort"

	"github.com/paulmach/orb"
)

// 字段名：与上游边界数据集及最终发布 schema 保持一致
const (
	FieldLegalPlaceName = "LEGAL_PLACE_NAME"
	FieldPlaceType      = "PLACE_TYPE"
	FieldPlaceName      = "PLACE_NAME"
	FieldCategory       = "COASTAL"
	// 叠加步骤附加的簿记字段前缀，例如 FID_cities_dissolved
	BookkeepingPrefix = "FID_"
)

// 文档注释：辖区要素
// 背景：合并后的每条记录；Category 为空指针表示陆地，非空为海岸类别（ocean/bay）。
// 约束：ID 在同一数据集内唯一且稳定，写回按 ID 定位；Geometry 每个 Polygon 元素即一个 Part。
type Feature struct {
	ID             int64
	LegalPlaceName string
	PlaceType      string
	PlaceName      string
	Category       *string
	Attrs          map[string]any
	Geometry       orb.MultiPolygon
}

// Dataset：同一坐标系下的要素集合
type Dataset struct {
	Name     string
	SRID     int
	Features []Feature
}

// Str：返回字符串指针，便于构造 Category
func Str(s string) *string { return &s }

// CategoryValue：陆地返回空串
func (f Feature) CategoryValue() string {
	if f.Category == nil {
		return ""
	}
	return *f.Category
}

// HasIdentity：至少有一个标识属性非空（仅含空白也算非空，不做裁剪）
func (f Feature) HasIdentity() bool {
	return f.LegalPlaceName != "" || f.PlaceType != "" || f.PlaceName != ""
}

// Clone：深拷贝要素（属性表与几何）
func (f Feature) Clone() Feature {
	out := f
	if f.Category != nil {
		out.Category = Str(*f.Category)
	}
	if f.Attrs != nil {
		out.Attrs = make(map[string]any, len(f.Attrs))
		for k, v := range f.Attrs {
			out.Attrs[k] = v
		}
	}
	if f.Geometry != nil {
		out.Geometry = f.Geometry.Clone()
	}
	return out
}

// Clone：深拷贝数据集
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Name: d.Name, SRID: d.SRID, Features: make([]Feature, len(d.Features))}
	for i, f := range d.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// Categories：数据集中实际出现的非空类别值（已排序）
func (d *Dataset) Categories() []string {
	seen := map[string]bool{}
	for _, f := range d.Features {
		if v := f.CategoryValue(); v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ByID：按 ID 建立索引
func (d *Dataset) ByID() map[int64]int {
	idx := make(map[int64]int, len(d.Features))
	for i, f := range d.Features {
		idx[f.ID] = i
	}
	return idx
}

// Namespaced：为固定的中间数据集名加上命名空间前缀，便于多个运行共用一个存储
func Namespaced(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "_" + name
}
