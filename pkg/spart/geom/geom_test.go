package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox2DContains(t *testing.T) {
	b := Box2D{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	cases := []struct {
		p    Point2D
		want bool
	}{
		{Point2D{0, 0}, true},
		{Point2D{10, 10}, true},
		{Point2D{5, 5}, true},
		{Point2D{10.0001, 5}, false},
		{Point2D{-0.0001, 5}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, b.Contains(c.p), "point %v", c.p)
	}
}

func TestBox3DContains(t *testing.T) {
	b := Box3D{MinX: 0, MinY: 0, MinZ: 0, MaxX: 10, MaxY: 10, MaxZ: 10}
	require.True(t, b.Contains(Point3D{0, 0, 0}))
	require.True(t, b.Contains(Point3D{10, 10, 10}))
	require.False(t, b.Contains(Point3D{10, 10, 10.1}))
}

func TestBox2DUnionIsTight(t *testing.T) {
	a := Box2D{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	b := Box2D{MinX: 5, MinY: -2, MaxX: 6, MaxY: 3}
	u := a.Union(b)
	assert.Equal(t, Box2D{MinX: 0, MinY: -2, MaxX: 6, MaxY: 3}, u)
}

func TestBox2DOverlap(t *testing.T) {
	a := Box2D{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	b := Box2D{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}
	assert.Equal(t, 25.0, a.Overlap(b))

	disjoint := Box2D{MinX: 20, MinY: 20, MaxX: 30, MaxY: 30}
	assert.Equal(t, 0.0, a.Overlap(disjoint))
}

func TestBox2DEnlargement(t *testing.T) {
	a := Box2D{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	inside := Box2D{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}
	assert.Equal(t, 0.0, a.Enlargement(inside))

	outside := Box2D{MinX: 10, MinY: 0, MaxX: 20, MaxY: 10}
	assert.Equal(t, 100.0, a.Enlargement(outside))
}

func TestBox2DMinDistance(t *testing.T) {
	b := Box2D{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	assert.Equal(t, 0.0, b.MinDistance(Point2D{5, 5}))
	assert.Equal(t, 0.0, b.MinDistance(Point2D{0, 0}))
	assert.Equal(t, 5.0, b.MinDistance(Point2D{15, 0}))
	assert.InDelta(t, 5.0, b.MinDistance(Point2D{13, 14}), 1e-9)
}

func TestDist2D(t *testing.T) {
	assert.Equal(t, 5.0, Dist2D(Point2D{0, 0}, Point2D{3, 4}))
	assert.Equal(t, 25.0, DistSquared2D(Point2D{0, 0}, Point2D{3, 4}))
}

func TestDist3D(t *testing.T) {
	assert.Equal(t, 13.0, Dist3D(Point3D{0, 0, 0}, Point3D{3, 4, 12}))
}

func TestBox2DCenter(t *testing.T) {
	b := Box2D{MinX: 0, MinY: 0, MaxX: 10, MaxY: 4}
	assert.Equal(t, Point2D{X: 5, Y: 2}, b.Center())
}
