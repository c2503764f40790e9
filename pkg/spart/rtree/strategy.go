package rtree

import "github.com/habedi/spart-go/pkg/spart/internal/rtreecore"

// chooseSubtreeClassic implements Guttman's ChooseSubtree: the child whose
// box would be enlarged least by newBox, ties broken by smaller area.
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

// quadraticSplit implements Guttman's QuadraticSplit: pick the most
// wasteful pair of entries as seeds, then repeatedly assign the remaining
// entry whose preference between the two groups is strongest.
func quadraticSplit(entries []rtreecore.NodeEntry, dim, minFill int) (group1, group2 []int) {
	n := len(entries)
	seed1, seed2 := pickSeeds(entries)

	g1Box := entries[seed1].Box
	g2Box := entries[seed2].Box
	g1 := []int{seed1}
	g2 := []int{seed2}
	assigned := make([]bool, n)
	assigned[seed1] = true
	assigned[seed2] = true
	remaining := n - 2

	for remaining > 0 {
		if len(g1)+remaining == minFill {
			g1, g1Box = assignAll(g1, g1Box, entries, assigned)
			break
		}
		if len(g2)+remaining == minFill {
			g2, g2Box = assignAll(g2, g2Box, entries, assigned)
			break
		}

		bestIdx := -1
		bestDiff := -1.0
		bestToG1 := true
		for i, e := range entries {
			if assigned[i] {
				continue
			}
			d1 := g1Box.Enlargement(e.Box)
			d2 := g2Box.Enlargement(e.Box)
			diff := d1 - d2
			if diff < 0 {
				diff = -diff
			}
			if diff > bestDiff {
				bestDiff = diff
				bestIdx = i
				bestToG1 = preferGroup1(d1, d2, g1Box, g2Box, len(g1), len(g2))
			}
		}

		assigned[bestIdx] = true
		remaining--
		if bestToG1 {
			g1 = append(g1, bestIdx)
			g1Box = g1Box.Union(entries[bestIdx].Box)
		} else {
			g2 = append(g2, bestIdx)
			g2Box = g2Box.Union(entries[bestIdx].Box)
		}
	}

	return g1, g2
}

// preferGroup1 applies PickNext's tie-break: smaller enlargement, then
// smaller area, then smaller entry count.
func preferGroup1(d1, d2 float64, g1Box, g2Box rtreecore.Box, n1, n2 int) bool {
	if d1 != d2 {
		return d1 < d2
	}
	if g1Box.Area() != g2Box.Area() {
		return g1Box.Area() < g2Box.Area()
	}
	return n1 <= n2
}

func assignAll(group []int, box rtreecore.Box, entries []rtreecore.NodeEntry, assigned []bool) ([]int, rtreecore.Box) {
	for i := range entries {
		if !assigned[i] {
			assigned[i] = true
			group = append(group, i)
			box = box.Union(entries[i].Box)
		}
	}
	return group, box
}

// pickSeeds selects the pair maximizing area(union(e1,e2)) - area(e1) -
// area(e2), the most "wasteful" pair to leave in the same group.
func pickSeeds(entries []rtreecore.NodeEntry) (int, int) {
	bestI, bestJ := 0, 1
	bestWaste := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			waste := entries[i].Box.Union(entries[j].Box).Area() - entries[i].Box.Area() - entries[j].Box.Area()
			if waste > bestWaste {
				bestWaste = waste
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}
