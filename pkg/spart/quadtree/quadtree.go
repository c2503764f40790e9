// Package quadtree implements a point-region quadtree over 2D points: a
// region-decomposition tree with a fixed root boundary and a per-leaf
// capacity, storing nodes in an arena-backed slab rather than as plain Go
// pointers, with subdivide-on-overflow insertion and support for delete,
// kNN, range search, and save/load.
package quadtree

import (
	"container/heap"
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/geom"
	"github.com/habedi/spart-go/pkg/spart/internal/arena"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic = "QUAD"

// Point is a 2D point together with its opaque payload.
type Point struct {
	X, Y float64
	Data payload.Value
}

// Equal reports whether p and o have identical coordinates and payload.
func (p Point) Equal(o Point) bool {
	return p.X == o.X && p.Y == o.Y && p.Data.Equal(o.Data)
}

// Boundary describes the root region of a Quadtree: the corner (X, Y) and
// the extent (Width, Height). A point (px, py) is inside iff
// X <= px <= X+Width and Y <= py <= Y+Height — closed on every side.
type Boundary struct {
	X, Y          float64
	Width, Height float64
}

func (b Boundary) box() geom.Box2D {
	return geom.Box2D{MinX: b.X, MinY: b.Y, MaxX: b.X + b.Width, MaxY: b.Y + b.Height}
}

// quarters splits box into NW, NE, SW, SE quadrants, in that order. "North"
// is the larger-Y half of the box; this is an arbitrary but fixed
// convention used consistently by subdivide and by the codec.
func quarters(box geom.Box2D) [4]geom.Box2D {
	midX := box.MinX + (box.MaxX-box.MinX)/2
	midY := box.MinY + (box.MaxY-box.MinY)/2
	return [4]geom.Box2D{
		{MinX: box.MinX, MinY: midY, MaxX: midX, MaxY: box.MaxY}, // NW
		{MinX: midX, MinY: midY, MaxX: box.MaxX, MaxY: box.MaxY}, // NE
		{MinX: box.MinX, MinY: box.MinY, MaxX: midX, MaxY: midY}, // SW
		{MinX: midX, MinY: box.MinY, MaxX: box.MaxX, MaxY: midY}, // SE
	}
}

type node struct {
	region   geom.Box2D
	isLeaf   bool
	pts      []Point
	children [4]arena.Ref
}

// Tree is a point-region quadtree with a fixed root Boundary and a per-leaf
// Capacity, fixed at construction.
type Tree struct {
	store    *arena.Store[node]
	root     arena.Ref
	region   geom.Box2D
	capacity int
}

// New constructs an empty Quadtree covering boundary, with capacity C >= 1
// points per leaf before it subdivides.
func New(boundary Boundary, capacity int) (*Tree, error) {
	if capacity <= 0 {
		return nil, spartutil.NewInvalidArgument("capacity must be >= 1, got %d", capacity)
	}
	if boundary.Width <= 0 || boundary.Height <= 0 {
		return nil, spartutil.NewInvalidArgument("boundary width and height must be positive")
	}
	st := arena.New[node]()
	r, n := st.Alloc()
	n.region = boundary.box()
	n.isLeaf = true
	return &Tree{store: st, root: r, region: n.region, capacity: capacity}, nil
}

// Boundary returns the tree's fixed root region.
func (t *Tree) Boundary() Boundary {
	return Boundary{X: t.region.MinX, Y: t.region.MinY, Width: t.region.MaxX - t.region.MinX, Height: t.region.MaxY - t.region.MinY}
}

// Capacity returns the fixed per-leaf point capacity.
func (t *Tree) Capacity() int { return t.capacity }

// Insert adds p to the tree. It returns false without modifying the tree if
// p lies outside the root boundary.
func (t *Tree) Insert(p Point) bool {
	if !t.region.Contains(geom.Point2D{X: p.X, Y: p.Y}) {
		return false
	}
	t.insertInto(t.root, p)
	return true
}

// InsertBulk inserts every point in ps, equivalent to inserting them one at
// a time in order. Points outside the boundary are silently skipped, same
// as a rejected Insert.
func (t *Tree) InsertBulk(ps []Point) {
	for _, p := range ps {
		t.Insert(p)
	}
}

func (t *Tree) insertInto(ref arena.Ref, p Point) {
	n := t.store.Get(ref)
	if n.isLeaf {
		if len(n.pts) < t.capacity {
			n.pts = append(n.pts, p)
			return
		}
		t.subdivide(ref)
		n = t.store.Get(ref)
	}
	for _, childRef := range n.children {
		child := t.store.Get(childRef)
		if child.region.Contains(geom.Point2D{X: p.X, Y: p.Y}) {
			t.insertInto(childRef, p)
			return
		}
	}
	panic("quadtree: point inside node region but no child claims it")
}

func (t *Tree) subdivide(ref arena.Ref) {
	n := t.store.Get(ref)
	pts := n.pts
	n.isLeaf = false
	n.pts = nil
	for i, box := range quarters(n.region) {
		childRef, child := t.store.Alloc()
		child.region = box
		child.isLeaf = true
		n.children[i] = childRef
	}
	for _, p := range pts {
		for _, childRef := range n.children {
			child := t.store.Get(childRef)
			if child.region.Contains(geom.Point2D{X: p.X, Y: p.Y}) {
				t.insertInto(childRef, p)
				break
			}
		}
	}
}

// Delete removes one point equal to p (coordinates and payload) if present.
func (t *Tree) Delete(p Point) bool {
	return t.deleteFrom(t.root, p)
}

func (t *Tree) deleteFrom(ref arena.Ref, p Point) bool {
	n := t.store.Get(ref)
	if n.isLeaf {
		for i := range n.pts {
			if n.pts[i].Equal(p) {
				n.pts = append(n.pts[:i], n.pts[i+1:]...)
				return true
			}
		}
		return false
	}
	for _, childRef := range n.children {
		child := t.store.Get(childRef)
		if child.region.Contains(geom.Point2D{X: p.X, Y: p.Y}) {
			return t.deleteFrom(childRef, p)
		}
	}
	return false
}

type heapItem struct {
	ref  arena.Ref
	leaf bool
	pt   Point
	dist float64
}

type exploreHeap []heapItem

func (h exploreHeap) Len() int            { return len(h) }
func (h exploreHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h exploreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *exploreHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *exploreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type resultHeap []heapItem

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// KNNSearch returns the k points closest to (x, y), ascending by distance.
// k must be >= 0; k == 0 returns an empty slice. If k exceeds the tree's
// population, every stored point is returned.
func (t *Tree) KNNSearch(x, y float64, k int) ([]Point, error) {
	if k < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", k)
	}
	if k == 0 {
		return nil, nil
	}
	q := geom.Point2D{X: x, Y: y}

	eh := &exploreHeap{{ref: t.root, dist: t.store.Get(t.root).region.MinDistance(q)}}
	heap.Init(eh)
	rh := &resultHeap{}

	for eh.Len() > 0 {
		if rh.Len() == k && (*eh)[0].dist > (*rh)[0].dist {
			break
		}
		cur := heap.Pop(eh).(heapItem)
		n := t.store.Get(cur.ref)
		if n.isLeaf {
			for _, p := range n.pts {
				d := geom.Dist2D(geom.Point2D{X: p.X, Y: p.Y}, q)
				if rh.Len() < k {
					heap.Push(rh, heapItem{pt: p, dist: d})
				} else if d < (*rh)[0].dist {
					heap.Pop(rh)
					heap.Push(rh, heapItem{pt: p, dist: d})
				}
			}
			continue
		}
		for _, childRef := range n.children {
			child := t.store.Get(childRef)
			d := child.region.MinDistance(q)
			if rh.Len() < k || d < (*rh)[0].dist {
				heap.Push(eh, heapItem{ref: childRef, dist: d})
			}
		}
	}

	out := make([]Point, rh.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(rh).(heapItem).pt
	}
	return out, nil
}

// RangeSearch returns every point within radius r (inclusive) of (x, y), in
// traversal order. r must be >= 0.
func (t *Tree) RangeSearch(x, y float64, r float64) ([]Point, error) {
	if r < 0 {
		return nil, spartutil.NewInvalidArgument("r must be >= 0, got %g", r)
	}
	q := geom.Point2D{X: x, Y: y}
	var out []Point
	t.rangeSearch(t.root, q, r, &out)
	return out, nil
}

func (t *Tree) rangeSearch(ref arena.Ref, q geom.Point2D, r float64, out *[]Point) {
	n := t.store.Get(ref)
	if n.region.MinDistance(q) > r {
		return
	}
	if n.isLeaf {
		for _, p := range n.pts {
			if geom.Dist2D(geom.Point2D{X: p.X, Y: p.Y}, q) <= r {
				*out = append(*out, p)
			}
		}
		return
	}
	for _, childRef := range n.children {
		t.rangeSearch(childRef, q, r, out)
	}
}

// Save writes the tree's binary representation to w.
func (t *Tree) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(t.capacity)); err != nil {
		return spartutil.NewIOError(err)
	}
	for _, v := range []float64{t.region.MinX, t.region.MinY, t.region.MaxX, t.region.MaxY} {
		if err := codec.WriteFloat64(w, v); err != nil {
			return spartutil.NewIOError(err)
		}
	}
	return t.writeNode(w, t.root)
}

func (t *Tree) writeNode(w io.Writer, ref arena.Ref) error {
	n := t.store.Get(ref)
	if n.isLeaf {
		if err := codec.WriteTag(w, codec.TagLeaf); err != nil {
			return spartutil.NewIOError(err)
		}
		if err := codec.WriteUint32(w, uint32(len(n.pts))); err != nil {
			return spartutil.NewIOError(err)
		}
		for _, p := range n.pts {
			if err := codec.WriteFloat64(w, p.X); err != nil {
				return spartutil.NewIOError(err)
			}
			if err := codec.WriteFloat64(w, p.Y); err != nil {
				return spartutil.NewIOError(err)
			}
			if err := codec.WritePayload(w, p.Data); err != nil {
				return spartutil.NewIOError(err)
			}
		}
		return nil
	}
	if err := codec.WriteTag(w, codec.TagInternal); err != nil {
		return spartutil.NewIOError(err)
	}
	if err := codec.WriteUint32(w, uint32(len(n.children))); err != nil {
		return spartutil.NewIOError(err)
	}
	for _, childRef := range n.children {
		if err := t.writeNode(w, childRef); err != nil {
			return err
		}
	}
	return nil
}

// Load reconstructs a tree previously written by Save.
func Load(r io.Reader) (*Tree, error) {
	if err := codec.ReadHeader(r, magic); err != nil {
		return nil, err
	}
	capU, err := codec.ReadUint32(r)
	if err != nil {
		return nil, spartutil.NewFormatError("truncated capacity: %s", err)
	}
	var coords [4]float64
	for i := range coords {
		v, err := codec.ReadFloat64(r)
		if err != nil {
			return nil, spartutil.NewFormatError("truncated boundary: %s", err)
		}
		coords[i] = v
	}
	region := geom.Box2D{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}

	st := arena.New[node]()
	t := &Tree{store: st, region: region, capacity: int(capU)}
	root, err := t.readNode(r, region)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// readNode decodes one subtree rooted in region, the region this node
// occupies (computed by the caller from the parent's quarters, since the
// wire format itself only stores the root's region).
func (t *Tree) readNode(r io.Reader, region geom.Box2D) (arena.Ref, error) {
	tag, err := codec.ReadTag(r)
	if err != nil {
		return arena.Ref{}, spartutil.NewFormatError("truncated node tag: %s", err)
	}
	ref, n := t.store.Alloc()
	n.region = region
	count, err := codec.ReadUint32(r)
	if err != nil {
		return arena.Ref{}, spartutil.NewFormatError("truncated node count: %s", err)
	}
	if tag == codec.TagLeaf {
		n.isLeaf = true
		n.pts = make([]Point, 0, count)
		for i := uint32(0); i < count; i++ {
			x, err := codec.ReadFloat64(r)
			if err != nil {
				return arena.Ref{}, spartutil.NewFormatError("truncated point x: %s", err)
			}
			y, err := codec.ReadFloat64(r)
			if err != nil {
				return arena.Ref{}, spartutil.NewFormatError("truncated point y: %s", err)
			}
			data, err := codec.ReadPayload(r)
			if err != nil {
				return arena.Ref{}, spartutil.NewFormatError("corrupt payload: %s", err)
			}
			n = t.store.Get(ref)
			n.pts = append(n.pts, Point{X: x, Y: y, Data: data})
		}
		return ref, nil
	}
	if count != 4 {
		return arena.Ref{}, spartutil.NewFormatError("quadtree internal node must have 4 children, got %d", count)
	}
	n.isLeaf = false
	childBoxes := quarters(region)
	for i := uint32(0); i < count; i++ {
		childRef, err := t.readNode(r, childBoxes[i])
		if err != nil {
			return arena.Ref{}, err
		}
		n = t.store.Get(ref)
		n.children[i] = childRef
	}
	return ref, nil
}
