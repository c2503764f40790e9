package rtree

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

func TestNewRTree2DRejectsZeroCapacity(t *testing.T) {
	_, err := NewRTree2D(0)
	require.Error(t, err)
	assert.True(t, spartutil.Is(err, spartutil.InvalidArgument))
}

// TestQuadraticSplitScenario is spec §8's literal R-tree QuadraticSplit
// scenario: capacity 2, insert (0,0), (100,100), (1,1) — the leaf
// overflows and splits into {(0,0),(1,1)} and {(100,100)}.
func TestQuadraticSplitScenario(t *testing.T) {
	rt, err := NewRTree2D(2)
	require.NoError(t, err)
	rt.Insert(Point2D{X: 0, Y: 0, Data: payload.Int(1)})
	rt.Insert(Point2D{X: 100, Y: 100, Data: payload.Int(2)})
	rt.Insert(Point2D{X: 1, Y: 1, Data: payload.Int(3)})

	assert.Equal(t, 3, rt.Len())

	got, err := rt.RangeSearch(0, 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	var ids []int64
	for _, p := range got {
		ids = append(ids, p.Data.Int())
	}
	assert.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestDeleteNotFound(t *testing.T) {
	rt, err := NewRTree2D(4)
	require.NoError(t, err)
	rt.Insert(Point2D{X: 1, Y: 1, Data: payload.Int(1)})
	assert.False(t, rt.Delete(Point2D{X: 2, Y: 2, Data: payload.Int(1)}))
	assert.True(t, rt.Delete(Point2D{X: 1, Y: 1, Data: payload.Int(1)}))
	assert.Equal(t, 0, rt.Len())
}

func TestPopulationInvariantAfterInsertsAndDeletes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	rt, err := NewRTree2D(4)
	require.NoError(t, err)

	var pts []Point2D
	for i := 0; i < 60; i++ {
		p := Point2D{X: rng.Float64() * 100, Y: rng.Float64() * 100, Data: payload.Int(int64(i))}
		pts = append(pts, p)
		rt.Insert(p)
	}

	var deleted int
	for i := 0; i < 20; i++ {
		if rt.Delete(pts[i]) {
			deleted++
		}
	}

	got, err := rt.KNNSearch(50, 50, len(pts))
	require.NoError(t, err)
	assert.Len(t, got, len(pts)-deleted)
}

func TestRangeCorrectness(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	rt, err := NewRTree2D(4)
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

func TestKNNNegativeIsError(t *testing.T) {
	rt, _ := NewRTree2D(4)
	_, err := rt.KNNSearch(0, 0, -1)
	require.Error(t, err)
}

func TestInsertBulkEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	var pts []Point2D
	for i := 0; i < 40; i++ {
		pts = append(pts, Point2D{X: rng.Float64() * 50, Y: rng.Float64() * 50, Data: payload.Int(int64(i))})
	}

	bulk, err := NewRTree2D(4)
	require.NoError(t, err)
	bulk.InsertBulk(pts)

	serial, err := NewRTree2D(4)
	require.NoError(t, err)
	for _, p := range pts {
		serial.Insert(p)
	}

	assert.Equal(t, serial.Len(), bulk.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rt, err := NewRTree2D(3)
	require.NoError(t, err)
	rt.InsertBulk([]Point2D{
		{X: 1, Y: 2, Data: payload.String("a")},
		{X: 10, Y: 20, Data: payload.String("b")},
		{X: -5, Y: 8, Data: payload.Int(3)},
		{X: 40, Y: -2, Data: payload.Map(map[string]payload.Value{"k": payload.Int(9)})},
	})

	var buf bytes.Buffer
	require.NoError(t, rt.Save(&buf))
	loaded, err := LoadRTree2D(&buf)
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
	rt, err := NewRTree2D(4)
	require.NoError(t, err)
	rt.Insert(Point2D{X: 1, Y: 1})
	var buf bytes.Buffer
	require.NoError(t, rt.Save(&buf))
	b := buf.Bytes()
	b[0] = 'X'
	_, err = LoadRTree2D(bytes.NewReader(b))
	require.Error(t, err)
	assert.True(t, spartutil.Is(err, spartutil.FormatError))
}

func TestRTree3DBasics(t *testing.T) {
	rt, err := NewRTree3D(4)
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
