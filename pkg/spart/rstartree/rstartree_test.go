package rstartree

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

func TestNewRStarTree2DRejectsZeroCapacity(t *testing.T) {
	_, err := NewRStarTree2D(0)
	require.Error(t, err)
	assert.True(t, spartutil.Is(err, spartutil.InvalidArgument))
}

func TestDeleteNotFound(t *testing.T) {
	rt, err := NewRStarTree2D(4)
	require.NoError(t, err)
	rt.Insert(Point2D{X: 1, Y: 1, Data: payload.Int(1)})
	assert.False(t, rt.Delete(Point2D{X: 2, Y: 2, Data: payload.Int(1)}))
	assert.True(t, rt.Delete(Point2D{X: 1, Y: 1, Data: payload.Int(1)}))
	assert.Equal(t, 0, rt.Len())
}

// TestReinsertionFiresOnceAtLeafLevel is spec §8's literal R*-tree
// forced-reinsertion scenario: in a small-capacity tree, the cluster's
// eighth point lands in a full leaf, and that overflowing insert must
// trigger exactly one forced reinsertion at the leaf level, not an
// immediate split and not more than one per level. A distant outlier is
// inserted afterwards.
func TestReinsertionFiresOnceAtLeafLevel(t *testing.T) {
	rt, err := NewRStarTree2D(4)
	require.NoError(t, err)

	cluster := []Point2D{
		{X: 0, Y: 0, Data: payload.Int(0)},
		{X: 1, Y: 0, Data: payload.Int(1)},
		{X: 0, Y: 1, Data: payload.Int(2)},
		{X: 1, Y: 1, Data: payload.Int(3)},
		{X: 0.5, Y: 0.5, Data: payload.Int(4)},
		{X: 0.5, Y: 0, Data: payload.Int(5)},
		{X: 0, Y: 0.5, Data: payload.Int(6)},
		{X: 0.5, Y: 1, Data: payload.Int(7)},
	}
	for _, p := range cluster[:7] {
		rt.Insert(p)
	}
	before := rt.t.ReinsertCount

	rt.Insert(cluster[7])

	assert.Equal(t, before+1, rt.t.ReinsertCount,
		"the overflowing insert must trigger exactly one forced reinsertion")

	rt.Insert(Point2D{X: 1000, Y: 1000, Data: payload.Int(8)})
	assert.Equal(t, 9, rt.Len())
}

func TestRangeCorrectness(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	rt, err := NewRStarTree2D(4)
	require.NoError(t, err)

	var pts []Point2D
	for i := 0; i < 200; i++ {
		p := Point2D{X: rng.Float64() * 100, Y: rng.Float64() * 100, Data: payload.Int(int64(i))}
		pts = append(pts, p)
		rt.Insert(p)
	}

	qx, qy, r := 50.0, 50.0, 15.0
	got, err := rt.RangeSearch(qx, qy, r)
	require.NoError(t, err)

	var want int
	for _, p := range pts {
		dx, dy := p.X-qx, p.Y-qy
		if dx*dx+dy*dy <= r*r {
			want++
		}
	}
	assert.Len(t, got, want)
}

func TestKNNOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	rt, err := NewRStarTree2D(4)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		rt.Insert(Point2D{X: rng.Float64() * 50, Y: rng.Float64() * 50, Data: payload.Int(int64(i))})
	}
	got, err := rt.KNNSearch(25, 25, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		d0 := (got[i-1].X-25)*(got[i-1].X-25) + (got[i-1].Y-25)*(got[i-1].Y-25)
		d1 := (got[i].X-25)*(got[i].X-25) + (got[i].Y-25)*(got[i].Y-25)
		assert.LessOrEqual(t, d0, d1)
	}
}

func TestKNNNegativeIsError(t *testing.T) {
	rt, _ := NewRStarTree2D(4)
	_, err := rt.KNNSearch(0, 0, -1)
	require.Error(t, err)
}

func TestInsertBulkEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	var pts []Point2D
	for i := 0; i < 40; i++ {
		pts = append(pts, Point2D{X: rng.Float64() * 50, Y: rng.Float64() * 50, Data: payload.Int(int64(i))})
	}

	bulk, err := NewRStarTree2D(4)
	require.NoError(t, err)
	bulk.InsertBulk(pts)

	serial, err := NewRStarTree2D(4)
	require.NoError(t, err)
	for _, p := range pts {
		serial.Insert(p)
	}

	assert.Equal(t, serial.Len(), bulk.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rt, err := NewRStarTree2D(3)
	require.NoError(t, err)
	rt.InsertBulk([]Point2D{
		{X: 1, Y: 2, Data: payload.String("a")},
		{X: 10, Y: 20, Data: payload.String("b")},
		{X: -5, Y: 8, Data: payload.Int(3)},
		{X: 40, Y: -2, Data: payload.Bytes([]byte{9, 9})},
		{X: 3, Y: 3, Data: payload.Null()},
	})

	var buf bytes.Buffer
	require.NoError(t, rt.Save(&buf))
	loaded, err := LoadRStarTree2D(&buf)
	require.NoError(t, err)
	assert.Equal(t, rt.Len(), loaded.Len())

	before, err := rt.KNNSearch(0, 0, 10)
	require.NoError(t, err)
	after, err := loaded.KNNSearch(0, 0, 10)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].X, after[i].X)
		assert.True(t, before[i].Data.Equal(after[i].Data))
	}
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	rt, err := NewRStarTree2D(4)
	require.NoError(t, err)
	rt.Insert(Point2D{X: 1, Y: 1})
	var buf bytes.Buffer
	require.NoError(t, rt.Save(&buf))
	b := buf.Bytes()
	b[0] = 'X'
	_, err = LoadRStarTree2D(bytes.NewReader(b))
	require.Error(t, err)
	assert.True(t, spartutil.Is(err, spartutil.FormatError))
}

func TestRStarTree3DBasics(t *testing.T) {
	rt, err := NewRStarTree3D(4)
	require.NoError(t, err)
	rt.InsertBulk([]Point3D{
		{X: 0, Y: 0, Z: 0, Data: payload.Int(1)},
		{X: 10, Y: 0, Z: 0, Data: payload.Int(2)},
		{X: 10.1, Y: 0, Z: 0, Data: payload.Int(3)},
	})
	got, err := rt.RangeSearch(0, 0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
