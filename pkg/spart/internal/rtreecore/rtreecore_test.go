package rtreecore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/habedi/spart-go/pkg/spart/payload"
)

func classicStrategy() Strategy {
	return Strategy{ChooseSubtree: chooseSubtreeClassic}
}

func chooseSubtreeClassic(entries []Box, newBox Box, level, height int) int {
	best := 0
	bestEnl := entries[0].Enlargement(newBox)
	for i := 1; i < len(entries); i++ {
		if enl := entries[i].Enlargement(newBox); enl < bestEnl {
			best, bestEnl = i, enl
		}
	}
	return best
}

func quadraticSplit(entries []NodeEntry, dim, minFill int) (group1, group2 []int) {
	n := len(entries)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx[:minFill], idx[minFill:]
}

func TestBoxUnionAreaOverlap(t *testing.T) {
	a := Box{Min: []float64{0, 0}, Max: []float64{2, 2}}
	b := Box{Min: []float64{1, 1}, Max: []float64{3, 3}}

	u := a.Union(b)
	assert.Equal(t, []float64{0, 0}, u.Min)
	assert.Equal(t, []float64{3, 3}, u.Max)
	assert.Equal(t, 4.0, a.Area())
	assert.Equal(t, 1.0, a.Overlap(b))
	assert.Equal(t, 5.0, a.Enlargement(b))
}

func TestInsertAndLenTrack(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	tr.Insert([]float64{1, 1}, payload.Int(1))
	tr.Insert([]float64{2, 2}, payload.Int(2))
	assert.Equal(t, 2, tr.Len())
}

func TestSaveLoadValidatesCleanTree(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	for i := 0; i < 30; i++ {
		tr.Insert([]float64{float64(i), float64(i) * 2}, payload.Int(int64(i)))
	}

	var buf bytes.Buffer
	require.NoError(t, tr.Save(&buf))
	loaded, err := Load(&buf, 2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	require.NoError(t, err)
	assert.Equal(t, tr.Len(), loaded.Len())
}

// TestValidateAggregatesMultipleViolations hand-builds a tree whose root
// has two children that both violate the entry-count bound, and checks
// that validate reports both instead of stopping at the first.
func TestValidateAggregatesMultipleViolations(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})

	leftRef, left := tr.store.Alloc()
	left.isLeaf = true
	left.entries = []nodeEntry{
		{box: pointBox([]float64{0, 0}), leaf: Entry{Coords: []float64{0, 0}, Data: payload.Int(1)}},
	}
	left.box = recomputeBox(left.entries)

	rightRef, right := tr.store.Alloc()
	right.isLeaf = true
	right.entries = []nodeEntry{
		{box: pointBox([]float64{10, 10}), leaf: Entry{Coords: []float64{10, 10}, Data: payload.Int(2)}},
	}
	right.box = recomputeBox(right.entries)

	rootRef, root := tr.store.Alloc()
	root.isLeaf = false
	root.entries = []nodeEntry{
		{box: left.box, child: leftRef, isSub: true},
		{box: right.box, child: rightRef, isSub: true},
	}
	root.box = recomputeBox(root.entries)
	tr.root = rootRef
	tr.fixParentsRecursive(rootRef)

	err := tr.validate()
	require.Error(t, err)
	violations := multierr.Errors(err)
	assert.Len(t, violations, 2, "both undersized leaves should be reported, not just the first")
}

func TestValidateDetectsLooseBox(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	// Five points overflow the capacity-4 root leaf, so the root becomes an
	// internal node, whose box validate checks against its entries.
	for i := 1; i <= 5; i++ {
		tr.Insert([]float64{float64(i), float64(i)}, payload.Int(int64(i)))
	}

	root := tr.store.Get(tr.root)
	root.box.Max[0] = 1000 // corrupt: no longer the tight union of its entries

	err := tr.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tight union")
}

func TestRangeSearchAndKNN(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	pts := [][2]float64{{0, 0}, {1, 0}, {5, 5}, {10, 10}}
	for i, p := range pts {
		tr.Insert([]float64{p[0], p[1]}, payload.Int(int64(i)))
	}

	got := tr.RangeSearch([]float64{0, 0}, 2)
	assert.Len(t, got, 2)

	knn := tr.KNNSearch([]float64{0, 0}, 2)
	require.Len(t, knn, 2)
	assert.Equal(t, payload.Int(0), knn[0].Data)
}

func TestDeleteCondensesUnderflow(t *testing.T) {
	tr := New(2, 4, 2, Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit})
	for i := 0; i < 10; i++ {
		tr.Insert([]float64{float64(i), float64(i)}, payload.Int(int64(i)))
	}
	for i := 0; i < 8; i++ {
		assert.True(t, tr.Delete([]float64{float64(i), float64(i)}, payload.Int(int64(i))))
	}
	assert.Equal(t, 2, tr.Len())
	remaining := tr.KNNSearch([]float64{0, 0}, 10)
	assert.Len(t, remaining, 2)
}
