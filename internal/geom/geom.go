// 包 geom：多边形几何运算封装（面积、叠加、拓扑谓词）
// 背景：要素在内存中统一以 orb.MultiPolygon 表达（每个 Polygon 即一个 Part）；叠加与拓扑判定交由 GEOS 完成，
// 两者之间以 WKB 互转，避免手写坐标搬运。
// 约束：坐标须已处于米制工作坐标系；不做几何有效性修复（由上游负责）。
package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geos"
)

// Area：单个 Part 的平面面积（外环减去洞）
func Area(p orb.Polygon) float64 { return planar.Area(p) }

// MultiArea：全部 Part 面积之和
func MultiArea(mp orb.MultiPolygon) float64 {
	var s float64
	for _, p := range mp {
		s += planar.Area(p)
	}
	return s
}

// Clone：深拷贝，保证写回阶段不与读取结果共享底层数组
func Clone(mp orb.MultiPolygon) orb.MultiPolygon {
	if mp == nil {
		return nil
	}
	return mp.Clone()
}

func toGeos(g orb.Geometry) (*geos.Geom, error) {
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("wkb marshal: %w", err)
	}
	gg, err := geos.NewGeomFromWKB(b)
	if err != nil {
		return nil, fmt.Errorf("geos from wkb: %w", err)
	}
	return gg, nil
}

// fromGeos：把 GEOS 结果还原为 MultiPolygon；线、点等低维碎片直接丢弃
func fromGeos(g *geos.Geom) (orb.MultiPolygon, error) {
	if g == nil || g.IsEmpty() {
		return orb.MultiPolygon{}, nil
	}
	og, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("wkb unmarshal: %w", err)
	}
	out := orb.MultiPolygon{}
	collectPolygons(og, &out)
	return out, nil
}

func collectPolygons(g orb.Geometry, out *orb.MultiPolygon) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			*out = append(*out, v)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			if len(p) > 0 {
				*out = append(*out, p)
			}
		}
	case orb.Collection:
		for _, c := range v {
			collectPolygons(c, out)
		}
	}
}

func overlay(a, b orb.Geometry, op func(x, y *geos.Geom) *geos.Geom) (orb.MultiPolygon, error) {
	ga, err := toGeos(a)
	if err != nil {
		return nil, err
	}
	defer ga.Destroy()
	gb, err := toGeos(b)
	if err != nil {
		return nil, err
	}
	defer gb.Destroy()
	r := op(ga, gb)
	if r == nil {
		return orb.MultiPolygon{}, nil
	}
	defer r.Destroy()
	return fromGeos(r)
}

func isEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0
	}
	return g == nil
}

// Union：几何并集
func Union(a, b orb.Geometry) (orb.MultiPolygon, error) {
	if isEmpty(b) {
		return asMulti(a), nil
	}
	if isEmpty(a) {
		return asMulti(b), nil
	}
	return overlay(a, b, func(x, y *geos.Geom) *geos.Geom { return x.Union(y) })
}

// Difference：a 减去 b
func Difference(a, b orb.Geometry) (orb.MultiPolygon, error) {
	if isEmpty(a) {
		return orb.MultiPolygon{}, nil
	}
	if isEmpty(b) {
		return asMulti(a), nil
	}
	return overlay(a, b, func(x, y *geos.Geom) *geos.Geom { return x.Difference(y) })
}

// Intersection：几何交集
func Intersection(a, b orb.Geometry) (orb.MultiPolygon, error) {
	if isEmpty(a) || isEmpty(b) {
		return orb.MultiPolygon{}, nil
	}
	return overlay(a, b, func(x, y *geos.Geom) *geos.Geom { return x.Intersection(y) })
}

// UnionAll：多个几何逐个合并
func UnionAll(gs []orb.MultiPolygon) (orb.MultiPolygon, error) {
	acc := orb.MultiPolygon{}
	for _, g := range gs {
		u, err := Union(acc, g)
		if err != nil {
			return nil, err
		}
		acc = u
	}
	return acc, nil
}

func predicate(a, b orb.Geometry, fn func(x, y *geos.Geom) bool) (bool, error) {
	ga, err := toGeos(a)
	if err != nil {
		return false, err
	}
	defer ga.Destroy()
	gb, err := toGeos(b)
	if err != nil {
		return false, err
	}
	defer gb.Destroy()
	return fn(ga, gb), nil
}

// Touches：边界相接且内部无重叠
func Touches(a, b orb.Geometry) (bool, error) {
	if isEmpty(a) || isEmpty(b) {
		return false, nil
	}
	if !BoundsNear(a.Bound(), b.Bound()) {
		return false, nil
	}
	return predicate(a, b, func(x, y *geos.Geom) bool { return x.Touches(y) })
}

// Disjoint：两者没有任何公共点
func Disjoint(a, b orb.Geometry) (bool, error) {
	if isEmpty(a) || isEmpty(b) {
		return true, nil
	}
	if !BoundsNear(a.Bound(), b.Bound()) {
		return true, nil
	}
	return predicate(a, b, func(x, y *geos.Geom) bool { return x.Disjoint(y) })
}

func asMulti(g orb.Geometry) orb.MultiPolygon {
	out := orb.MultiPolygon{}
	if g == nil {
		return out
	}
	collectPolygons(g, &out)
	return out.Clone()
}
