// Package rtreecore is the dimension-agnostic R-tree engine shared by the
// classic (Guttman) and R* families, each of which supplies its own
// ChooseSubtree, Split and (for R*) forced-reinsertion strategy via a
// Strategy. Working over a raw []float64 min/max box, rather than a
// geom.Box2D/Box3D, lets the 2D and 3D facades in rtree and rstartree
// reuse one insert/delete/search implementation instead of duplicating it
// per dimension.
package rtreecore

import (
	"container/heap"
	"fmt"
	"io"
	"math"

	"go.uber.org/multierr"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/internal/arena"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

// Box is an axis-aligned bounding box in D dimensions.
type Box struct {
	Min []float64
	Max []float64
}

func newBox(dim int) Box {
	return Box{Min: make([]float64, dim), Max: make([]float64, dim)}
}

func pointBox(coords []float64) Box {
	dim := len(coords)
	b := newBox(dim)
	copy(b.Min, coords)
	copy(b.Max, coords)
	return b
}

// Union returns the tight bounding box of b and o.
func (b Box) Union(o Box) Box {
	dim := len(b.Min)
	out := newBox(dim)
	for i := 0; i < dim; i++ {
		out.Min[i] = min(b.Min[i], o.Min[i])
		out.Max[i] = max(b.Max[i], o.Max[i])
	}
	return out
}

// Area returns b's area/volume/hypervolume, generalised to Dim dimensions.
func (b Box) Area() float64 {
	a := 1.0
	for i := range b.Min {
		a *= b.Max[i] - b.Min[i]
	}
	return a
}

// Perimeter returns the sum of b's edge lengths on every axis, doubled —
// the R*-tree split heuristic's margin function.
func (b Box) Perimeter() float64 {
	var p float64
	for i := range b.Min {
		p += b.Max[i] - b.Min[i]
	}
	return 2 * p
}

// Enlargement returns how much adding o to b would grow b's area.
func (b Box) Enlargement(o Box) float64 {
	return b.Union(o).Area() - b.Area()
}

// Overlap returns the area/volume of intersection between b and o, or zero
// if they don't intersect.
func (b Box) Overlap(o Box) float64 {
	ov := 1.0
	for i := range b.Min {
		d := min(b.Max[i], o.Max[i]) - max(b.Min[i], o.Min[i])
		if d <= 0 {
			return 0
		}
		ov *= d
	}
	return ov
}

func (b Box) intersects(o Box) bool {
	for i := range b.Min {
		if b.Max[i] < o.Min[i] || b.Min[i] > o.Max[i] {
			return false
		}
	}
	return true
}

func (b Box) minDistSquared(q []float64) float64 {
	var sum float64
	for i, qi := range q {
		var d float64
		if qi < b.Min[i] {
			d = b.Min[i] - qi
		} else if qi > b.Max[i] {
			d = qi - b.Max[i]
		}
		sum += d * d
	}
	return sum
}

// Center returns the midpoint of b.
func (b Box) Center() []float64 {
	c := make([]float64, len(b.Min))
	for i := range c {
		c[i] = (b.Min[i] + b.Max[i]) / 2
	}
	return c
}

func centerDistSquared(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Entry is a stored leaf entry: a point and its payload.
type Entry struct {
	Coords []float64
	Data   payload.Value
}

type nodeEntry struct {
	box   Box
	child arena.Ref // internal entry: subtree
	leaf  Entry     // leaf entry: point
	isSub bool
}

type node struct {
	box      Box
	isLeaf   bool
	entries  []nodeEntry
	parent   arena.Ref
	parentIx int // this node's index within parent.entries, when parent is valid
}

// Strategy bundles the algorithm choices that differ between classic
// Guttman R-tree and R*-tree: how a subtree is chosen for insertion, and
// how an overflowing node is split. ChooseSubtree and Split both receive
// the node's current entries and must not mutate the slice they are
// given.
type Strategy struct {
	ChooseSubtree func(entries []Box, newBox Box, level, height int) int
	Split         func(entries []NodeEntry, dim, minFill int) (group1, group2 []int)
	// Reinsert, when non-nil, enables R*-style forced reinsertion: it
	// picks the entries to remove from an overflowing node (returning
	// their indices, farthest-from-center first) instead of splitting
	// immediately. Condensation and the engine call it at most once per
	// level per top-level insertion.
	Reinsert func(entries []NodeEntry, nodeBox Box, minFill, capacity int) []int
}

// NodeEntry is the box-only view of a node's entries handed to a Strategy
// function, which operates purely on geometry and must not see the
// engine's internal node representation.
type NodeEntry struct {
	Box Box
}

// Tree is the dimension-agnostic R-tree/R*-tree engine.
type Tree struct {
	Dim      int
	Capacity int
	MinFill  int
	Strategy Strategy

	store *arena.Store[node]
	root  arena.Ref
	size  int
	// reinsertedAtLevel tracks, for the insertion currently in progress,
	// which levels have already had a forced reinsertion performed, so
	// the "once per level per insert" rule can be enforced.
	reinsertedAtLevel map[int]bool
	// ReinsertCount counts every forced reinsertion performed over the
	// tree's lifetime. It exists for tests that need to observe R*-tree's
	// overflow treatment firing without reaching into node internals.
	ReinsertCount int
}

// New constructs an empty tree. capacity and minFill must already be
// validated by the caller (the public facades own argument checking).
func New(dim, capacity, minFill int, strategy Strategy) *Tree {
	st := arena.New[node]()
	ref, n := st.Alloc()
	n.isLeaf = true
	return &Tree{
		Dim: dim, Capacity: capacity, MinFill: minFill, Strategy: strategy,
		store: st, root: ref, reinsertedAtLevel: map[int]bool{},
	}
}

// Len returns the number of points stored.
func (t *Tree) Len() int { return t.size }

// RootBox returns the root node's current bounding box (the zero Box,
// Min==Max==nil-length, if the tree has never held a point... in practice
// the root always has a box once non-empty; an empty tree's root box is
// degenerate and callers needing it for Save should guard on Len()==0).
func (t *Tree) RootBox() Box { return t.store.Get(t.root).box }

func toPublic(entries []nodeEntry) []NodeEntry {
	out := make([]NodeEntry, len(entries))
	for i, e := range entries {
		out[i] = NodeEntry{Box: e.box}
	}
	return out
}

// Insert adds coords/data as a new leaf entry.
func (t *Tree) Insert(coords []float64, data payload.Value) {
	clearMap(t.reinsertedAtLevel)
	pb := pointBox(coords)
	leaf := t.chooseLeaf(pb)
	t.insertEntryInto(leaf, nodeEntry{box: pb, leaf: Entry{Coords: coords, Data: data}}, t.depthOf(leaf))
	t.size++
}

// chooseLeaf descends from the root applying Strategy.ChooseSubtree at
// every internal level, returning the ref of the leaf that should receive
// pb.
func (t *Tree) chooseLeaf(pb Box) arena.Ref {
	ref := t.root
	height := t.height()
	level := 0
	for {
		n := t.store.Get(ref)
		if n.isLeaf {
			return ref
		}
		boxes := make([]Box, len(n.entries))
		for i, e := range n.entries {
			boxes[i] = e.box
		}
		idx := t.Strategy.ChooseSubtree(boxes, pb, level, height)
		ref = n.entries[idx].child
		level++
	}
}

func (t *Tree) height() int {
	h := 0
	ref := t.root
	for {
		n := t.store.Get(ref)
		if n.isLeaf {
			return h
		}
		ref = n.entries[0].child
		h++
	}
}

func (t *Tree) depthOf(ref arena.Ref) int {
	d := 0
	n := t.store.Get(ref)
	for !n.parent.IsNil() {
		d++
		n = t.store.Get(n.parent)
	}
	return d
}

// insertEntryInto appends e to the node at ref, splitting or
// forced-reinserting on overflow, and propagating the resulting box change
// (and any new sibling) up to the root.
func (t *Tree) insertEntryInto(ref arena.Ref, e nodeEntry, level int) {
	n := t.store.Get(ref)
	n.entries = append(n.entries, e)
	n.box = recomputeBox(n.entries)
	if e.isSub {
		t.fixChildParentIndices(ref)
	}

	if len(n.entries) <= t.Capacity {
		t.adjustAncestors(ref)
		return
	}

	if t.Strategy.Reinsert != nil && !t.reinsertedAtLevel[level] {
		t.reinsertedAtLevel[level] = true
		t.forcedReinsert(ref, level)
		return
	}

	t.handleOverflow(ref, level)
}

// forcedReinsert removes the farthest-from-center p entries from the
// overflowing node ref and reinserts them via the standard insert path at
// the same level, per R*-tree's overflow treatment.
func (t *Tree) forcedReinsert(ref arena.Ref, level int) {
	t.ReinsertCount++
	n := t.store.Get(ref)
	removeIdx := t.Strategy.Reinsert(toPublic(n.entries), n.box, t.MinFill, t.Capacity)
	removed := make([]nodeEntry, len(removeIdx))
	keepMask := make([]bool, len(n.entries))
	for i := range keepMask {
		keepMask[i] = true
	}
	for i, idx := range removeIdx {
		removed[i] = n.entries[idx]
		keepMask[idx] = false
	}
	kept := n.entries[:0:0]
	for i, e := range n.entries {
		if keepMask[i] {
			kept = append(kept, e)
		}
	}
	n.entries = kept
	n.box = recomputeBox(n.entries)
	t.fixChildParentIndices(ref)
	t.adjustAncestors(ref)

	for _, re := range removed {
		if re.isSub {
			leaf := t.chooseLeafAtLevel(re.box, level)
			t.insertEntryInto(leaf, re, level)
		} else {
			leaf := t.chooseLeaf(re.box)
			t.insertEntryInto(leaf, re, t.depthOf(leaf))
		}
	}
}

// chooseLeafAtLevel is chooseLeaf but stopping at the given level instead
// of always descending to a true leaf, used to reinsert an internal
// orphan at its original height.
func (t *Tree) chooseLeafAtLevel(pb Box, level int) arena.Ref {
	ref := t.root
	height := t.height()
	cur := 0
	for cur < level {
		n := t.store.Get(ref)
		boxes := make([]Box, len(n.entries))
		for i, e := range n.entries {
			boxes[i] = e.box
		}
		idx := t.Strategy.ChooseSubtree(boxes, pb, cur, height)
		ref = n.entries[idx].child
		cur++
	}
	return ref
}

// handleOverflow splits the overflowing node ref via Strategy.Split and
// propagates the new sibling up, splitting ancestors in turn if they
// overflow, and growing a new root if the root itself splits.
func (t *Tree) handleOverflow(ref arena.Ref, level int) {
	n := t.store.Get(ref)
	g1, g2 := t.Strategy.Split(toPublic(n.entries), t.Dim, t.MinFill)

	oldEntries := n.entries
	e1 := make([]nodeEntry, len(g1))
	for i, idx := range g1 {
		e1[i] = oldEntries[idx]
	}
	e2 := make([]nodeEntry, len(g2))
	for i, idx := range g2 {
		e2[i] = oldEntries[idx]
	}

	isLeaf := n.isLeaf
	parent := n.parent
	parentIx := n.parentIx

	n.entries = e1
	n.box = recomputeBox(e1)
	t.fixChildParentIndices(ref)

	sibRef, sib := t.store.Alloc()
	sib.isLeaf = isLeaf
	sib.entries = e2
	sib.box = recomputeBox(e2)
	t.fixChildParentIndices(sibRef)

	if parent.IsNil() {
		t.growNewRoot(ref, sibRef)
		return
	}

	pn := t.store.Get(parent)
	pn.entries[parentIx].box = n.box
	sibEntry := nodeEntry{box: sib.box, child: sibRef, isSub: true}
	pn.entries = append(pn.entries, sibEntry)
	sib.parent = parent
	sib.parentIx = len(pn.entries) - 1
	pn.box = recomputeBox(pn.entries)

	if len(pn.entries) <= t.Capacity {
		t.adjustAncestors(parent)
		return
	}
	if t.Strategy.Reinsert != nil && !t.reinsertedAtLevel[level-1] {
		t.reinsertedAtLevel[level-1] = true
		t.forcedReinsert(parent, level-1)
		return
	}
	t.handleOverflow(parent, level-1)
}

// growNewRoot replaces the root with a fresh internal node pointing at the
// two halves of the just-split former root.
func (t *Tree) growNewRoot(ref1, ref2 arena.Ref) {
	n1 := t.store.Get(ref1)
	n2 := t.store.Get(ref2)
	newRootRef, newRoot := t.store.Alloc()
	newRoot.isLeaf = false
	newRoot.entries = []nodeEntry{
		{box: n1.box, child: ref1, isSub: true},
		{box: n2.box, child: ref2, isSub: true},
	}
	newRoot.box = recomputeBox(newRoot.entries)
	n1.parent = newRootRef
	n1.parentIx = 0
	n2.parent = newRootRef
	n2.parentIx = 1
	t.root = newRootRef
}

// fixChildParentIndices refreshes the parent/parentIx of every child
// pointed to by ref's entries after ref's entry slice has been rebuilt.
func (t *Tree) fixChildParentIndices(ref arena.Ref) {
	n := t.store.Get(ref)
	if n.isLeaf {
		return
	}
	for i, e := range n.entries {
		child := t.store.Get(e.child)
		child.parent = ref
		child.parentIx = i
	}
}

// adjustAncestors widens every ancestor box from ref up to the root to
// reflect ref's current box, without splitting anything.
func (t *Tree) adjustAncestors(ref arena.Ref) {
	n := t.store.Get(ref)
	for !n.parent.IsNil() {
		parent := n.parent
		pn := t.store.Get(parent)
		pn.entries[n.parentIx].box = n.box
		pn.box = recomputeBox(pn.entries)
		n = pn
	}
}

func recomputeBox(entries []nodeEntry) Box {
	if len(entries) == 0 {
		return Box{}
	}
	b := entries[0].box
	for _, e := range entries[1:] {
		b = b.Union(e.box)
	}
	return b
}

func clearMap(m map[int]bool) {
	for k := range m {
		delete(m, k)
	}
}

// Delete removes one leaf entry with the given coordinates and payload.
func (t *Tree) Delete(coords []float64, data payload.Value) bool {
	clearMap(t.reinsertedAtLevel)
	leafRef, idx := t.findLeaf(t.root, coords, data)
	if leafRef.IsNil() {
		return false
	}
	n := t.store.Get(leafRef)
	n.entries = append(n.entries[:idx], n.entries[idx+1:]...)
	n.box = recomputeBox(n.entries)
	t.size--
	t.condense(leafRef)
	return true
}

func (t *Tree) findLeaf(ref arena.Ref, coords []float64, data payload.Value) (arena.Ref, int) {
	n := t.store.Get(ref)
	if n.isLeaf {
		for i, e := range n.entries {
			if coordsEqual(e.leaf.Coords, coords) && e.leaf.Data.Equal(data) {
				return ref, i
			}
		}
		return arena.Ref{}, -1
	}
	for _, e := range n.entries {
		if e.box.ContainsPoint(coords) {
			if r, i := t.findLeaf(e.child, coords, data); !r.IsNil() {
				return r, i
			}
		}
	}
	return arena.Ref{}, -1
}

func coordsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether coords lies within b, inclusive.
func (b Box) ContainsPoint(coords []float64) bool {
	for i, c := range coords {
		if c < b.Min[i] || c > b.Max[i] {
			return false
		}
	}
	return true
}

// condense implements the classic condense algorithm: a node that has
// underflowed is removed from its parent and its remaining entries
// (leaf points, or whole internal subtrees) are collected as orphans to be
// reinserted at their original level once the whole chain up to the root
// has been unwound. If the root ends with a single internal child, that
// child replaces the root.
func (t *Tree) condense(ref arena.Ref) {
	type orphan struct {
		entry nodeEntry
		level int
	}
	var orphans []orphan
	level := t.heightFromLeaf(ref)

	cur := ref
	for {
		n := t.store.Get(cur)
		underflow := cur != t.root && len(n.entries) < t.MinFill
		if !underflow {
			if cur != t.root {
				t.adjustAncestors(cur)
			}
			break
		}
		parent := n.parent
		parentIx := n.parentIx
		for _, e := range n.entries {
			orphans = append(orphans, orphan{entry: e, level: level})
		}
		pn := t.store.Get(parent)
		pn.entries = append(pn.entries[:parentIx], pn.entries[parentIx+1:]...)
		t.fixChildParentIndices(parent)
		pn.box = recomputeBox(pn.entries)
		t.store.Free(cur)
		cur = parent
		level++
	}

	if cur == t.root {
		rn := t.store.Get(t.root)
		if !rn.isLeaf && len(rn.entries) == 1 {
			onlyChild := rn.entries[0].child
			t.store.Free(t.root)
			t.root = onlyChild
			t.store.Get(t.root).parent = arena.Ref{}
		}
	}

	for _, o := range orphans {
		if o.entry.isSub {
			depth := t.height() - o.level
			leaf := t.chooseLeafAtLevel(o.entry.box, depth)
			t.insertEntryInto(leaf, o.entry, depth)
		} else {
			leaf := t.chooseLeaf(o.entry.box)
			t.insertEntryInto(leaf, o.entry, t.depthOf(leaf))
		}
	}
}

// heightFromLeaf returns how many levels ref sits above the leaf level
// (0 for a leaf).
func (t *Tree) heightFromLeaf(ref arena.Ref) int {
	return t.height() - t.depthOf(ref)
}

// RangeSearch returns every point within radius r of q.
func (t *Tree) RangeSearch(q []float64, r float64) []Entry {
	var out []Entry
	t.rangeSearch(t.root, q, r, &out)
	return out
}

func (t *Tree) rangeSearch(ref arena.Ref, q []float64, r float64, out *[]Entry) {
	n := t.store.Get(ref)
	qb := pointBox(q)
	expanded := Box{Min: make([]float64, len(q)), Max: make([]float64, len(q))}
	for i := range q {
		expanded.Min[i] = qb.Min[i] - r
		expanded.Max[i] = qb.Max[i] + r
	}
	if n.isLeaf {
		for _, e := range n.entries {
			if math.Sqrt(centerDistSquared(e.leaf.Coords, q)) <= r {
				*out = append(*out, e.leaf)
			}
		}
		return
	}
	for _, e := range n.entries {
		if e.box.intersects(expanded) {
			t.rangeSearch(e.child, q, r, out)
		}
	}
}

type knnItem struct {
	ref   arena.Ref
	entry Entry
	dist  float64
}

type exploreHeap []knnItem

func (h exploreHeap) Len() int            { return len(h) }
func (h exploreHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h exploreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *exploreHeap) Push(x interface{}) { *h = append(*h, x.(knnItem)) }
func (h *exploreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type resultHeap []knnItem

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(knnItem)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// KNNSearch returns the k entries closest to q, ascending by distance.
func (t *Tree) KNNSearch(q []float64, k int) []Entry {
	if k == 0 || t.size == 0 {
		return nil
	}
	eh := &exploreHeap{{ref: t.root, dist: t.store.Get(t.root).box.minDistSquared(q)}}
	heap.Init(eh)
	rh := &resultHeap{}

	for eh.Len() > 0 {
		if rh.Len() == k && (*eh)[0].dist > (*rh)[0].dist {
			break
		}
		cur := heap.Pop(eh).(knnItem)
		n := t.store.Get(cur.ref)
		if n.isLeaf {
			for _, e := range n.entries {
				d := centerDistSquared(e.leaf.Coords, q)
				if rh.Len() < k {
					heap.Push(rh, knnItem{entry: e.leaf, dist: d})
				} else if d < (*rh)[0].dist {
					heap.Pop(rh)
					heap.Push(rh, knnItem{entry: e.leaf, dist: d})
				}
			}
			continue
		}
		for _, e := range n.entries {
			d := e.box.minDistSquared(q)
			if rh.Len() < k || d < (*rh)[0].dist {
				heap.Push(eh, knnItem{ref: e.child, dist: d})
			}
		}
	}

	out := make([]Entry, rh.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(rh).(knnItem).entry
	}
	return out
}

// Save writes the tree body (tag/count/entries pre-order, per the shared
// binary format) to w. Child bounding boxes are never written: a box is
// always the union of its entries', so Load recomputes every internal box
// bottom-up as it rebuilds the tree instead of persisting redundant
// geometry.
func (t *Tree) Save(w io.Writer) error {
	return t.saveNode(w, t.root)
}

func (t *Tree) saveNode(w io.Writer, ref arena.Ref) error {
	n := t.store.Get(ref)
	if n.isLeaf {
		if err := codec.WriteTag(w, codec.TagLeaf); err != nil {
			return spartutil.NewIOError(err)
		}
		if err := codec.WriteUint32(w, uint32(len(n.entries))); err != nil {
			return spartutil.NewIOError(err)
		}
		for _, e := range n.entries {
			for _, v := range e.leaf.Coords {
				if err := codec.WriteFloat64(w, v); err != nil {
					return spartutil.NewIOError(err)
				}
			}
			if err := codec.WritePayload(w, e.leaf.Data); err != nil {
				return spartutil.NewIOError(err)
			}
		}
		return nil
	}
	if err := codec.WriteTag(w, codec.TagInternal); err != nil {
		return spartutil.NewIOError(err)
	}
	if err := codec.WriteUint32(w, uint32(len(n.entries))); err != nil {
		return spartutil.NewIOError(err)
	}
	for _, e := range n.entries {
		if err := t.saveNode(w, e.child); err != nil {
			return err
		}
	}
	return nil
}

// Load reconstructs a tree body previously written by Save, rebuilding
// node boxes bottom-up and reattaching parent/parentIx as it goes so the
// result supports Insert/Delete identically to a tree built by hand.
func Load(r io.Reader, dim, capacity, minFill int, strategy Strategy) (*Tree, error) {
	t := &Tree{Dim: dim, Capacity: capacity, MinFill: minFill, Strategy: strategy,
		store: arena.New[node](), reinsertedAtLevel: map[int]bool{}}
	root, size, err := t.loadNode(r, dim)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.size = size
	t.fixParentsRecursive(root)
	if err := t.validate(); err != nil {
		return nil, spartutil.NewFormatError("node invariants violated: %s", err)
	}
	return t, nil
}

// validate walks the whole tree and reports every entry-count and
// tight-bounding-box violation it finds, rather than stopping at the
// first one: a corrupt file can violate the invariant at many nodes at
// once, and a single aggregated error is more useful for diagnosing it
// than whichever violation happens to be encountered first.
func (t *Tree) validate() error {
	var errs error
	t.validateNode(t.root, true, &errs)
	return errs
}

func (t *Tree) validateNode(ref arena.Ref, isRoot bool, errs *error) {
	n := t.store.Get(ref)
	if !isRoot && !n.isLeaf && (len(n.entries) < t.MinFill || len(n.entries) > t.Capacity) {
		*errs = multierr.Append(*errs, fmt.Errorf("internal node has %d entries, want between %d and %d", len(n.entries), t.MinFill, t.Capacity))
	}
	if !isRoot && n.isLeaf && (len(n.entries) < t.MinFill || len(n.entries) > t.Capacity) {
		*errs = multierr.Append(*errs, fmt.Errorf("leaf node has %d entries, want between %d and %d", len(n.entries), t.MinFill, t.Capacity))
	}
	if n.isLeaf {
		return
	}
	want := recomputeBox(n.entries)
	if !boxEqual(n.box, want) {
		*errs = multierr.Append(*errs, fmt.Errorf("internal node box is not the tight union of its children"))
	}
	for _, e := range n.entries {
		t.validateNode(e.child, false, errs)
	}
}

func boxEqual(a, b Box) bool {
	for i := range a.Min {
		if a.Min[i] != b.Min[i] || a.Max[i] != b.Max[i] {
			return false
		}
	}
	return true
}

func (t *Tree) loadNode(r io.Reader, dim int) (arena.Ref, int, error) {
	tag, err := codec.ReadTag(r)
	if err != nil {
		return arena.Ref{}, 0, spartutil.NewFormatError("truncated node tag: %s", err)
	}
	count, err := codec.ReadUint32(r)
	if err != nil {
		return arena.Ref{}, 0, spartutil.NewFormatError("truncated node count: %s", err)
	}
	ref, n := t.store.Alloc()
	if tag == codec.TagLeaf {
		n.isLeaf = true
		n.entries = make([]nodeEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			coords := make([]float64, dim)
			for j := range coords {
				v, err := codec.ReadFloat64(r)
				if err != nil {
					return arena.Ref{}, 0, spartutil.NewFormatError("truncated coordinate: %s", err)
				}
				coords[j] = v
			}
			data, err := codec.ReadPayload(r)
			if err != nil {
				return arena.Ref{}, 0, spartutil.NewFormatError("corrupt payload: %s", err)
			}
			n = t.store.Get(ref)
			n.entries = append(n.entries, nodeEntry{box: pointBox(coords), leaf: Entry{Coords: coords, Data: data}})
		}
		n.box = recomputeBox(n.entries)
		return ref, int(count), nil
	}
	n.isLeaf = false
	n.entries = make([]nodeEntry, 0, count)
	total := 0
	for i := uint32(0); i < count; i++ {
		childRef, childCount, err := t.loadNode(r, dim)
		if err != nil {
			return arena.Ref{}, 0, err
		}
		total += childCount
		n = t.store.Get(ref)
		childBox := t.store.Get(childRef).box
		n.entries = append(n.entries, nodeEntry{box: childBox, child: childRef, isSub: true})
	}
	n.box = recomputeBox(n.entries)
	return ref, total, nil
}

func (t *Tree) fixParentsRecursive(ref arena.Ref) {
	n := t.store.Get(ref)
	if n.isLeaf {
		return
	}
	for i, e := range n.entries {
		child := t.store.Get(e.child)
		child.parent = ref
		child.parentIx = i
		t.fixParentsRecursive(e.child)
	}
}
