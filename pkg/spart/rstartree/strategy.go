package rstartree

import (
	"math"
	"sort"

	"github.com/habedi/spart-go/pkg/spart/internal/rtreecore"
)

// chooseSubtreeRStar applies R*-tree's locality-restoring rule: one level
// above the leaves, the child minimizing overlap enlargement with its
// siblings wins (ties by area enlargement, then area); at every other
// internal level it falls back to classic least-enlargement.
func chooseSubtreeRStar(entries []rtreecore.Box, newBox rtreecore.Box, level, height int) int {
	if level != height-1 {
		return chooseSubtreeClassic(entries, newBox, level, height)
	}
	best := 0
	bestOverlapEnl := math.Inf(1)
	var bestAreaEnl, bestArea float64
	for i, e := range entries {
		tentative := e.Union(newBox)
		var overlapEnl float64
		for j, o := range entries {
			if j == i {
				continue
			}
			overlapEnl += tentative.Overlap(o) - e.Overlap(o)
		}
		areaEnl := e.Enlargement(newBox)
		area := e.Area()
		better := overlapEnl < bestOverlapEnl ||
			(overlapEnl == bestOverlapEnl && areaEnl < bestAreaEnl) ||
			(overlapEnl == bestOverlapEnl && areaEnl == bestAreaEnl && area < bestArea)
		if better {
			best = i
			bestOverlapEnl, bestAreaEnl, bestArea = overlapEnl, areaEnl, area
		}
	}
	return best
}

// chooseSubtreeClassic is the plain least-enlargement rule, identical to
// the classic R-tree's, used by chooseSubtreeRStar away from the level
// just above the leaves.
func chooseSubtreeClassic(entries []rtreecore.Box, newBox rtreecore.Box, level, height int) int {
	best := 0
	bestEnl := entries[0].Enlargement(newBox)
	bestArea := entries[0].Area()
	for i := 1; i < len(entries); i++ {
		enl := entries[i].Enlargement(newBox)
		if enl < bestEnl || (enl == bestEnl && entries[i].Area() < bestArea) {
			best = i
			bestEnl = enl
			bestArea = entries[i].Area()
		}
	}
	return best
}

func unionBox(entries []rtreecore.NodeEntry, idx []int) rtreecore.Box {
	b := entries[idx[0]].Box
	for _, i := range idx[1:] {
		b = b.Union(entries[i].Box)
	}
	return b
}

// sortedIndices orders entry indices by lower, then upper, bound on axis.
func sortedIndices(entries []rtreecore.NodeEntry, axis int) []int {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ea, eb := entries[idx[a]].Box, entries[idx[b]].Box
		if ea.Min[axis] != eb.Min[axis] {
			return ea.Min[axis] < eb.Min[axis]
		}
		return ea.Max[axis] < eb.Max[axis]
	})
	return idx
}

// axisSplits enumerates every valid split (index m..n-m) of entries
// ordered along axis.
func axisSplits(entries []rtreecore.NodeEntry, axis, minFill int) [][2][]int {
	order := sortedIndices(entries, axis)
	var out [][2][]int
	for k := minFill; k <= len(entries)-minFill; k++ {
		g1 := append([]int(nil), order[:k]...)
		g2 := append([]int(nil), order[k:]...)
		out = append(out, [2][]int{g1, g2})
	}
	return out
}

func marginSum(entries []rtreecore.NodeEntry, splits [][2][]int) float64 {
	var sum float64
	for _, s := range splits {
		sum += unionBox(entries, s[0]).Perimeter() + unionBox(entries, s[1]).Perimeter()
	}
	return sum
}

// rStarSplit implements the R*-Split goodness-of-split heuristic: the
// split axis is the one minimizing total margin summed over every valid
// split on that axis; the split chosen on that axis is the one minimizing
// overlap between the two groups, ties broken by smaller summed area.
func rStarSplit(entries []rtreecore.NodeEntry, dim, minFill int) (group1, group2 []int) {
	bestAxis := 0
	bestMargin := math.Inf(1)
	for axis := 0; axis < dim; axis++ {
		m := marginSum(entries, axisSplits(entries, axis, minFill))
		if m < bestMargin {
			bestMargin = m
			bestAxis = axis
		}
	}

	bestOverlap := math.Inf(1)
	bestAreaSum := math.Inf(1)
	var bestG1, bestG2 []int
	for _, s := range axisSplits(entries, bestAxis, minFill) {
		b1 := unionBox(entries, s[0])
		b2 := unionBox(entries, s[1])
		ov := b1.Overlap(b2)
		areaSum := b1.Area() + b2.Area()
		if ov < bestOverlap || (ov == bestOverlap && areaSum < bestAreaSum) {
			bestOverlap, bestAreaSum = ov, areaSum
			bestG1, bestG2 = s[0], s[1]
		}
	}
	return bestG1, bestG2
}

func distSquared(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// reinsert implements R*-tree's forced reinsertion entry choice: the
// p = ceil(0.3*capacity) entries whose centers are farthest from the
// node's box center, farthest first.
func reinsert(entries []rtreecore.NodeEntry, nodeBox rtreecore.Box, minFill, capacity int) []int {
	center := nodeBox.Center()
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		da := distSquared(entries[idx[a]].Box.Center(), center)
		db := distSquared(entries[idx[b]].Box.Center(), center)
		return da > db
	})
	p := int(math.Ceil(0.3 * float64(capacity)))
	if p < 1 {
		p = 1
	}
	if p > len(idx) {
		p = len(idx)
	}
	return idx[:p]
}

func minFillRStar(capacity int) int {
	m := int(math.Ceil(0.4 * float64(capacity)))
	if m < 1 {
		m = 1
	}
	return m
}

func rStarStrategy() rtreecore.Strategy {
	return rtreecore.Strategy{
		ChooseSubtree: chooseSubtreeRStar,
		Split:         rStarSplit,
		Reinsert:      reinsert,
	}
}
