package geom

import "github.com/paulmach/orb"

// 文档注释：包围盒快速过滤
// 背景：叠加与拓扑判定都要经过 GEOS 往返，先用包围盒排除明显不相交的组合。
// 约束：边界相接的两个包围盒视为相交（Touches 需要保留这类组合）。
func BoundsNear(a, b orb.Bound) bool {
	return a.Min[0] <= b.Max[0] && b.Min[0] <= a.Max[0] &&
		a.Min[1] <= b.Max[1] && b.Min[1] <= a.Max[1]
}

// Rect：按最小/最大坐标构造矩形 Part（逆时针外环，首尾闭合）
func Rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}
