package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaWithHole(t *testing.T) {
	p := Rect(0, 0, 100, 100)
	p = append(p, orb.Ring{{10, 10}, {10, 20}, {20, 20}, {20, 10}, {10, 10}})
	assert.InDelta(t, 10000-100, Area(p), 1e-9)
	assert.InDelta(t, 10000-100+50, MultiArea(orb.MultiPolygon{p, Rect(200, 0, 205, 10)}), 1e-9)
}

func TestUnionOfTouchingPartsMerges(t *testing.T) {
	land := orb.MultiPolygon{Rect(0, 0, 1000, 500)}
	sliver := Rect(1000, 0, 1010, 100)

	u, err := Union(land, sliver)
	require.NoError(t, err)
	require.Len(t, u, 1)
	assert.InDelta(t, 501000, MultiArea(u), 1e-6)
}

func TestDifferenceRemovesPart(t *testing.T) {
	buffer := orb.MultiPolygon{Rect(2000, 0, 7000, 2000), Rect(1000, 0, 1010, 100)}
	d, err := Difference(buffer, Rect(1000, 0, 1010, 100))
	require.NoError(t, err)
	require.Len(t, d, 1)
	assert.InDelta(t, 10000000, MultiArea(d), 1e-6)
}

func TestDifferenceToEmpty(t *testing.T) {
	d, err := Difference(orb.MultiPolygon{Rect(0, 0, 1, 1)}, Rect(0, 0, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, d)

	d, err = Difference(orb.MultiPolygon{}, Rect(0, 0, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestIntersection(t *testing.T) {
	i, err := Intersection(orb.MultiPolygon{Rect(0, 0, 10, 10)}, Rect(5, 0, 20, 10))
	require.NoError(t, err)
	assert.InDelta(t, 50, MultiArea(i), 1e-9)

	i, err = Intersection(orb.MultiPolygon{Rect(0, 0, 10, 10)}, Rect(50, 0, 60, 10))
	require.NoError(t, err)
	assert.Empty(t, i)
}

func TestTouchesAndDisjoint(t *testing.T) {
	a := Rect(0, 0, 10, 10)
	edge := Rect(10, 0, 20, 5)
	overlap := Rect(5, 5, 15, 15)
	far := Rect(100, 100, 110, 110)

	ok, err := Touches(a, edge)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Touches(a, overlap)
	require.NoError(t, err)
	assert.False(t, ok, "interior overlap is not touching")

	ok, err = Touches(a, far)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Disjoint(a, far)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Disjoint(a, edge)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnionAll(t *testing.T) {
	u, err := UnionAll([]orb.MultiPolygon{
		{Rect(0, 0, 10, 10)},
		{Rect(10, 0, 20, 10)},
		{Rect(100, 0, 110, 10)},
	})
	require.NoError(t, err)
	assert.Len(t, u, 2)
	assert.InDelta(t, 300, MultiArea(u), 1e-9)
}

func TestBoundsNear(t *testing.T) {
	a := Rect(0, 0, 10, 10).Bound()
	assert.True(t, BoundsNear(a, Rect(10, 10, 20, 20).Bound()))
	assert.False(t, BoundsNear(a, Rect(10.5, 0, 20, 20).Bound()))
}
