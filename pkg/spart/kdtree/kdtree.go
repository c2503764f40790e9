// Package kdtree implements a binary space-partitioning tree that
// alternates its splitting axis with depth (axis = depth mod D). The core
// engine in this file works over a raw []float64 coordinate so the 2D and
// 3D facades (KdTree2D, KdTree3D) share one implementation instead of
// duplicating the descent, rebuild, and delete logic per dimension.
package kdtree

import (
	"container/heap"
	"io"
	"sort"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/internal/arena"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

// entry is a coordinate vector together with its payload, the unit the
// internal engine stores and returns.
type entry struct {
	coords []float64
	data   payload.Value
}

type node struct {
	coords []float64
	data   payload.Value
	left   arena.Ref
	right  arena.Ref
}

// tree is the dimension-agnostic engine behind KdTree2D and KdTree3D.
type tree struct {
	dim   int
	store *arena.Store[node]
	root  arena.Ref
	size  int
}

func newTree(dim int) *tree {
	return &tree{dim: dim, store: arena.New[node]()}
}

func coordsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func distSquared(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// insert adds e by standard binary descent: at each node, a coordinate
// equal to the node's on the splitting axis goes right.
func (t *tree) insert(e entry) {
	t.size++
	if t.root.IsNil() {
		ref, n := t.store.Alloc()
		n.coords = e.coords
		n.data = e.data
		t.root = ref
		return
	}
	t.insertInto(t.root, e, 0)
}

func (t *tree) insertInto(ref arena.Ref, e entry, depth int) {
	n := t.store.Get(ref)
	axis := depth % t.dim
	if e.coords[axis] < n.coords[axis] {
		if n.left.IsNil() {
			childRef, child := t.store.Alloc()
			child.coords = e.coords
			child.data = e.data
			n.left = childRef
			return
		}
		t.insertInto(n.left, e, depth+1)
		return
	}
	if n.right.IsNil() {
		childRef, child := t.store.Alloc()
		child.coords = e.coords
		child.data = e.data
		n.right = childRef
		return
	}
	t.insertInto(n.right, e, depth+1)
}

// collectAll returns every entry currently stored, in no particular order.
func (t *tree) collectAll() []entry {
	out := make([]entry, 0, t.size)
	t.collect(t.root, &out)
	return out
}

func (t *tree) collect(ref arena.Ref, out *[]entry) {
	if ref.IsNil() {
		return
	}
	n := t.store.Get(ref)
	*out = append(*out, entry{coords: n.coords, data: n.data})
	t.collect(n.left, out)
	t.collect(n.right, out)
}

// insertBulk merges es with whatever is already stored and rebuilds the
// tree from scratch as a balanced median-of-all split, per the chosen
// semantics for bulk insert on a non-empty tree.
func (t *tree) insertBulk(es []entry) {
	all := append(t.collectAll(), es...)
	t.store = arena.New[node]()
	t.root = t.buildBalanced(all, 0)
	t.size = len(all)
}

func (t *tree) buildBalanced(es []entry, depth int) arena.Ref {
	if len(es) == 0 {
		return arena.Ref{}
	}
	axis := depth % t.dim
	sort.Slice(es, func(i, j int) bool { return es[i].coords[axis] < es[j].coords[axis] })
	mid := len(es) / 2
	// Points equal to the median on axis go right, as in insert and delete.
	for mid > 0 && es[mid-1].coords[axis] == es[mid].coords[axis] {
		mid--
	}
	ref, n := t.store.Alloc()
	n.coords = es[mid].coords
	n.data = es[mid].data
	n.left = t.buildBalanced(es[:mid], depth+1)
	n.right = t.buildBalanced(es[mid+1:], depth+1)
	return ref
}

// findMin returns the ref, within the subtree rooted at ref, holding the
// smallest coordinate on axis. Unlike a plain BST minimum this must search
// both children, since the splitting axis at this subtree's levels need not
// be axis.
func (t *tree) findMin(ref arena.Ref, axis int) arena.Ref {
	n := t.store.Get(ref)
	best := ref
	bestVal := n.coords[axis]
	for _, child := range [2]arena.Ref{n.left, n.right} {
		if child.IsNil() {
			continue
		}
		cand := t.findMin(child, axis)
		if cv := t.store.Get(cand).coords[axis]; cv < bestVal {
			best = cand
			bestVal = cv
		}
	}
	return best
}

// delete removes the node whose coordinates and payload match e exactly,
// using the canonical replace-with-successor algorithm: a node with a
// right subtree is replaced by the minimum (on its own splitting axis) of
// that subtree, which is then recursively deleted from it; a node with
// only a left subtree has that subtree moved to the right first, so the
// same rule applies. A leaf is simply dropped.
func (t *tree) delete(e entry) bool {
	newRoot, ok := t.deleteNode(t.root, e, 0)
	if ok {
		t.root = newRoot
		t.size--
	}
	return ok
}

func (t *tree) deleteNode(ref arena.Ref, e entry, depth int) (arena.Ref, bool) {
	if ref.IsNil() {
		return ref, false
	}
	axis := depth % t.dim
	n := t.store.Get(ref)
	if coordsEqual(n.coords, e.coords) && n.data.Equal(e.data) {
		switch {
		case !n.right.IsNil():
			minRef := t.findMin(n.right, axis)
			minNode := t.store.Get(minRef)
			minEntry := entry{coords: minNode.coords, data: minNode.data}
			newRight, _ := t.deleteNode(n.right, minEntry, depth+1)
			n = t.store.Get(ref)
			n.coords, n.data = minEntry.coords, minEntry.data
			n.right = newRight
			return ref, true
		case !n.left.IsNil():
			minRef := t.findMin(n.left, axis)
			minNode := t.store.Get(minRef)
			minEntry := entry{coords: minNode.coords, data: minNode.data}
			newRight, _ := t.deleteNode(n.left, minEntry, depth+1)
			n = t.store.Get(ref)
			n.coords, n.data = minEntry.coords, minEntry.data
			n.left = arena.Ref{}
			n.right = newRight
			return ref, true
		default:
			t.store.Free(ref)
			return arena.Ref{}, true
		}
	}
	if e.coords[axis] < n.coords[axis] {
		newLeft, ok := t.deleteNode(n.left, e, depth+1)
		n = t.store.Get(ref)
		n.left = newLeft
		return ref, ok
	}
	newRight, ok := t.deleteNode(n.right, e, depth+1)
	n = t.store.Get(ref)
	n.right = newRight
	return ref, ok
}

type candidate struct {
	coords []float64
	data   payload.Value
	dist   float64
}

type boundedMaxHeap []candidate

func (h boundedMaxHeap) Len() int            { return len(h) }
func (h boundedMaxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h boundedMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *boundedMaxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *boundedMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// knn fills h (bounded to size k) via recursive descent: visit the side q
// falls on first, then cross the splitting hyperplane only if it could
// still hold a closer point than the current k-th best.
func (t *tree) knn(ref arena.Ref, q []float64, k, depth int, h *boundedMaxHeap) {
	if ref.IsNil() {
		return
	}
	n := t.store.Get(ref)
	d := distSquared(n.coords, q)
	if h.Len() < k {
		heap.Push(h, candidate{coords: n.coords, data: n.data, dist: d})
	} else if d < (*h)[0].dist {
		heap.Pop(h)
		heap.Push(h, candidate{coords: n.coords, data: n.data, dist: d})
	}
	axis := depth % t.dim
	diff := q[axis] - n.coords[axis]
	near, far := n.left, n.right
	if diff >= 0 {
		near, far = n.right, n.left
	}
	t.knn(near, q, k, depth+1, h)
	if h.Len() < k || diff*diff < (*h)[0].dist {
		t.knn(far, q, k, depth+1, h)
	}
}

func (t *tree) rangeSearch(ref arena.Ref, q []float64, r float64, depth int, out *[]entry) {
	if ref.IsNil() {
		return
	}
	n := t.store.Get(ref)
	if distSquared(n.coords, q) <= r*r {
		*out = append(*out, entry{coords: n.coords, data: n.data})
	}
	axis := depth % t.dim
	if q[axis]-r <= n.coords[axis] {
		t.rangeSearch(n.left, q, r, depth+1, out)
	}
	if q[axis]+r >= n.coords[axis] {
		t.rangeSearch(n.right, q, r, depth+1, out)
	}
}

// save writes the tree body (not the shared magic/version header) as a
// preorder traversal with a presence byte ahead of every node: 0 for a nil
// child, 1 followed by the node's coordinates, payload, left subtree, and
// right subtree. The splitting axis is never stored, since it is always
// derivable from depth mod dim on the way back in.
func (t *tree) save(w io.Writer) error {
	if err := codec.WriteUint32(w, uint32(t.dim)); err != nil {
		return spartutil.NewIOError(err)
	}
	return t.saveNode(w, t.root)
}

func (t *tree) saveNode(w io.Writer, ref arena.Ref) error {
	if ref.IsNil() {
		return codec.WriteTag(w, codec.TagLeaf)
	}
	if err := codec.WriteTag(w, codec.TagInternal); err != nil {
		return spartutil.NewIOError(err)
	}
	n := t.store.Get(ref)
	for _, v := range n.coords {
		if err := codec.WriteFloat64(w, v); err != nil {
			return spartutil.NewIOError(err)
		}
	}
	if err := codec.WritePayload(w, n.data); err != nil {
		return spartutil.NewIOError(err)
	}
	if err := t.saveNode(w, n.left); err != nil {
		return err
	}
	return t.saveNode(w, n.right)
}

func loadTree(r io.Reader) (*tree, error) {
	dimU, err := codec.ReadUint32(r)
	if err != nil {
		return nil, spartutil.NewFormatError("truncated dimension: %s", err)
	}
	t := newTree(int(dimU))
	root, err := t.loadNode(r)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.size = len(t.collectAll())
	return t, nil
}

func (t *tree) loadNode(r io.Reader) (arena.Ref, error) {
	tag, err := codec.ReadTag(r)
	if err != nil {
		return arena.Ref{}, spartutil.NewFormatError("truncated node tag: %s", err)
	}
	if tag == codec.TagLeaf {
		return arena.Ref{}, nil
	}
	ref, n := t.store.Alloc()
	coords := make([]float64, t.dim)
	for i := range coords {
		v, err := codec.ReadFloat64(r)
		if err != nil {
			return arena.Ref{}, spartutil.NewFormatError("truncated coordinate: %s", err)
		}
		coords[i] = v
	}
	data, err := codec.ReadPayload(r)
	if err != nil {
		return arena.Ref{}, spartutil.NewFormatError("corrupt payload: %s", err)
	}
	n.coords = coords
	n.data = data
	left, err := t.loadNode(r)
	if err != nil {
		return arena.Ref{}, err
	}
	n = t.store.Get(ref)
	n.left = left
	right, err := t.loadNode(r)
	if err != nil {
		return arena.Ref{}, err
	}
	n = t.store.Get(ref)
	n.right = right
	return ref, nil
}
