package cut

import (
	"place-boundaries/internal/dataset"
	"place-boundaries/internal/geom"

	"github.com/paulmach/orb"
)

// 文档注释：两图层叠加（Union）
// 背景：边界要素 B 与海岸线要素 C 的每一种重叠组合输出一条记录：B∩C 携带 B 的属性与 C 的类别；B 未被任何 C 覆盖的部分
// 携带 B 的属性与空串类别；C 未被任何 B 覆盖的部分只携带 C 的类别（即全局剩余面）。
// 约束：假定同一图层内部要素互不重叠（边界已按地名融合）；每条记录附加 FID_<图层名> 簿记字段，未参与的一侧记为 -1；
// 空结果不输出；输出 ID 从 1 开始顺序编号。
func Overlay(boundary, coast *dataset.Dataset) ([]dataset.Feature, error) {
	fidB := dataset.BookkeepingPrefix + boundary.Name
	fidC := dataset.BookkeepingPrefix + coast.Name
	var out []dataset.Feature
	emit := func(f dataset.Feature, bID, cID int64) {
		if f.Attrs == nil {
			f.Attrs = map[string]any{}
		}
		f.Attrs[fidB] = bID
		f.Attrs[fidC] = cID
		f.ID = int64(len(out) + 1)
		out = append(out, f)
	}

	coastCover := make([][]orb.MultiPolygon, len(coast.Features))
	for _, b := range boundary.Features {
		bb := b.Geometry.Bound()
		var covers []orb.MultiPolygon
		for j, c := range coast.Features {
			if !geom.BoundsNear(bb, c.Geometry.Bound()) {
				continue
			}
			inter, err := geom.Intersection(b.Geometry, c.Geometry)
			if err != nil {
				return nil, err
			}
			if len(inter) == 0 {
				continue
			}
			rec := mergeAttrs(b, c)
			rec.Category = dataset.Str(c.CategoryValue())
			rec.Geometry = inter
			emit(rec, b.ID, c.ID)
			covers = append(covers, c.Geometry)
			coastCover[j] = append(coastCover[j], b.Geometry)
		}
		rest := geom.Clone(b.Geometry)
		if len(covers) > 0 {
			cover, err := geom.UnionAll(covers)
			if err != nil {
				return nil, err
			}
			if rest, err = geom.Difference(b.Geometry, cover); err != nil {
				return nil, err
			}
		}
		if len(rest) == 0 {
			continue
		}
		rec := b.Clone()
		rec.Category = dataset.Str("")
		rec.Geometry = rest
		emit(rec, b.ID, -1)
	}

	for j, c := range coast.Features {
		rest := geom.Clone(c.Geometry)
		if len(coastCover[j]) > 0 {
			cover, err := geom.UnionAll(coastCover[j])
			if err != nil {
				return nil, err
			}
			if rest, err = geom.Difference(c.Geometry, cover); err != nil {
				return nil, err
			}
		}
		if len(rest) == 0 {
			continue
		}
		rec := dataset.Feature{Category: dataset.Str(c.CategoryValue()), Attrs: copyAttrs(c.Attrs), Geometry: rest}
		emit(rec, -1, c.ID)
	}
	return out, nil
}

// mergeAttrs：C 的透传属性在前，B 的属性覆盖同名字段；标识字段取自 B
func mergeAttrs(b, c dataset.Feature) dataset.Feature {
	rec := dataset.Feature{
		LegalPlaceName: b.LegalPlaceName,
		PlaceType:      b.PlaceType,
		PlaceName:      b.PlaceName,
		Attrs:          copyAttrs(c.Attrs),
	}
	for k, v := range b.Attrs {
		rec.Attrs[k] = v
	}
	return rec
}

func copyAttrs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
