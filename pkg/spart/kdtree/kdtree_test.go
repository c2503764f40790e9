package kdtree

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

// TestDeleteAndRequeryScenario is spec §8's literal k-d tree delete-and-
// requery scenario: after deleting p2, a kNN(1) query at p2's own
// coordinate must return one of the two remaining points, whichever is
// truly closest (a tie here, so either is acceptable).
func TestDeleteAndRequeryScenario(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 1, Y: 2, Data: payload.String("p1")})
	kt.Insert(Point2D{X: 5, Y: 5, Data: payload.String("p2")})
	kt.Insert(Point2D{X: 9, Y: 8, Data: payload.String("p3")})

	require.True(t, kt.Delete(Point2D{X: 5, Y: 5, Data: payload.String("p2")}))
	assert.Equal(t, 2, kt.Len())

	got, err := kt.KNNSearch(5, 5, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, []string{"p1", "p3"}, got[0].Data.String())
}

// TestRangeBoundaryInclusivity is spec §8's literal range-boundary scenario.
func TestRangeBoundaryInclusivity(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 0, Y: 0, Data: payload.Int(1)})
	kt.Insert(Point2D{X: 10, Y: 0, Data: payload.Int(2)})
	kt.Insert(Point2D{X: 10.1, Y: 0, Data: payload.Int(3)})

	got, err := kt.RangeSearch(0, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []int64{got[0].Data.Int(), got[1].Data.Int()}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestDeleteNotFound(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 1, Y: 1})
	assert.False(t, kt.Delete(Point2D{X: 2, Y: 2}))
}

func TestDeleteRequiresPayloadMatch(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 1, Y: 1, Data: payload.Int(1)})
	assert.False(t, kt.Delete(Point2D{X: 1, Y: 1, Data: payload.Int(2)}))
	assert.True(t, kt.Delete(Point2D{X: 1, Y: 1, Data: payload.Int(1)}))
}

func TestInsertBulkEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var pts []Point2D
	for i := 0; i < 50; i++ {
		pts = append(pts, Point2D{X: rng.Float64() * 100, Y: rng.Float64() * 100, Data: payload.Int(int64(i))})
	}

	bulk := NewKdTree2D()
	bulk.InsertBulk(pts)

	serial := NewKdTree2D()
	for _, p := range pts {
		serial.Insert(p)
	}

	assert.Equal(t, serial.Len(), bulk.Len())
	a, err := bulk.KNNSearch(50, 50, len(pts))
	require.NoError(t, err)
	b, err := serial.KNNSearch(50, 50, len(pts))
	require.NoError(t, err)
	require.Len(t, a, len(b))
	for i := range a {
		assert.InDelta(t, distTo(50, 50, b[i]), distTo(50, 50, a[i]), 1e-9)
	}
}

func distTo(x, y float64, p Point2D) float64 {
	dx, dy := p.X-x, p.Y-y
	return dx*dx + dy*dy
}

func TestBulkInsertOnNonEmptyTreeRebuilds(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 1, Y: 1, Data: payload.Int(1)})
	kt.InsertBulk([]Point2D{
		{X: 2, Y: 2, Data: payload.Int(2)},
		{X: 3, Y: 3, Data: payload.Int(3)},
	})
	assert.Equal(t, 3, kt.Len())
	got, err := kt.KNNSearch(0, 0, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestBulkInsertEmptyIsNoOp(t *testing.T) {
	kt := NewKdTree2D()
	kt.Insert(Point2D{X: 1, Y: 1})
	kt.InsertBulk(nil)
	assert.Equal(t, 1, kt.Len())
}

func TestKNNNegativeKIsError(t *testing.T) {
	kt := NewKdTree2D()
	_, err := kt.KNNSearch(0, 0, -1)
	require.Error(t, err)
	assert.True(t, spartutil.Is(err, spartutil.InvalidArgument))
}

func TestKNNOnEmptyTree(t *testing.T) {
	kt := NewKdTree2D()
	got, err := kt.KNNSearch(0, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestKNNOrdering checks property 3: kNN results are ordered by
// non-decreasing distance.
func TestKNNOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	kt := NewKdTree2D()
	for i := 0; i < 100; i++ {
		kt.Insert(Point2D{X: rng.Float64() * 50, Y: rng.Float64() * 50, Data: payload.Int(int64(i))})
	}
	got, err := kt.KNNSearch(25, 25, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, distTo(25, 25, got[i-1]), distTo(25, 25, got[i]))
	}
}

func TestSaveLoad2D(t *testing.T) {
	kt := NewKdTree2D()
	kt.InsertBulk([]Point2D{
		{X: 1, Y: 2, Data: payload.String("a")},
		{X: -5, Y: 8, Data: payload.String("b")},
		{X: 3.5, Y: -2.5, Data: payload.Int(42)},
	})

	var buf bytes.Buffer
	require.NoError(t, kt.Save(&buf))
	loaded, err := LoadKdTree2D(&buf)
	require.NoError(t, err)
	assert.Equal(t, kt.Len(), loaded.Len())

	before, err := kt.KNNSearch(0, 0, 3)
	require.NoError(t, err)
	after, err := loaded.KNNSearch(0, 0, 3)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].X, after[i].X)
		assert.True(t, before[i].Data.Equal(after[i].Data))
	}
}

func TestLoad2DRejectsWrongDimension(t *testing.T) {
	kt3 := NewKdTree3D()
	kt3.Insert(Point3D{X: 1, Y: 1, Z: 1})
	var buf bytes.Buffer
	require.NoError(t, kt3.Save(&buf))
	_, err := LoadKdTree2D(&buf)
	require.Error(t, err)
}

func TestKdTree3DBasics(t *testing.T) {
	kt := NewKdTree3D()
	kt.InsertBulk([]Point3D{
		{X: 0, Y: 0, Z: 0, Data: payload.Int(1)},
		{X: 10, Y: 0, Z: 0, Data: payload.Int(2)},
		{X: 10.1, Y: 0, Z: 0, Data: payload.Int(3)},
	})
	got, err := kt.RangeSearch(0, 0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.True(t, kt.Delete(Point3D{X: 10, Y: 0, Z: 0, Data: payload.Int(2)}))
	assert.Equal(t, 2, kt.Len())
}
