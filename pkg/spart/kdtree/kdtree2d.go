package kdtree

import (
	"container/heap"
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic2D = "KDT2"

// Point2D is a 2D point together with its opaque payload.
type Point2D struct {
	X, Y float64
	Data payload.Value
}

func (p Point2D) coords() []float64 { return []float64{p.X, p.Y} }

func pointFromEntry2D(e entry) Point2D {
	return Point2D{X: e.coords[0], Y: e.coords[1], Data: e.data}
}

// KdTree2D is a k-d tree over 2D points, alternating the x and y axes with
// depth.
type KdTree2D struct {
	t *tree
}

// NewKdTree2D constructs an empty 2D k-d tree.
func NewKdTree2D() *KdTree2D {
	return &KdTree2D{t: newTree(2)}
}

// Len returns the number of points currently stored.
func (k *KdTree2D) Len() int { return k.t.size }

// Insert adds p by standard binary descent.
func (k *KdTree2D) Insert(p Point2D) {
	k.t.insert(entry{coords: p.coords(), data: p.Data})
}

// InsertBulk merges ps with whatever is already stored and rebuilds the
// tree as a balanced median split.
func (k *KdTree2D) InsertBulk(ps []Point2D) {
	if len(ps) == 0 {
		return
	}
	es := make([]entry, len(ps))
	for i, p := range ps {
		es[i] = entry{coords: p.coords(), data: p.Data}
	}
	k.t.insertBulk(es)
}

// Delete removes one point equal to p (coordinates and payload) if present.
func (k *KdTree2D) Delete(p Point2D) bool {
	return k.t.delete(entry{coords: p.coords(), data: p.Data})
}

// KNNSearch returns the k points closest to (x, y), ascending by distance.
func (k *KdTree2D) KNNSearch(x, y float64, kk int) ([]Point2D, error) {
	if kk < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", kk)
	}
	if kk == 0 || k.t.root.IsNil() {
		return nil, nil
	}
	q := []float64{x, y}
	h := &boundedMaxHeap{}
	k.t.knn(k.t.root, q, kk, 0, h)
	out := make([]Point2D, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		out[i] = Point2D{X: c.coords[0], Y: c.coords[1], Data: c.data}
	}
	return out, nil
}

// RangeSearch returns every point within radius r (inclusive) of (x, y), in
// traversal order.
func (k *KdTree2D) RangeSearch(x, y float64, r float64) ([]Point2D, error) {
	if r < 0 {
		return nil, spartutil.NewInvalidArgument("r must be >= 0, got %g", r)
	}
	var out []entry
	k.t.rangeSearch(k.t.root, []float64{x, y}, r, 0, &out)
	pts := make([]Point2D, len(out))
	for i, e := range out {
		pts[i] = pointFromEntry2D(e)
	}
	return pts, nil
}

// Save writes the tree's binary representation to w.
func (k *KdTree2D) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic2D); err != nil {
		return err
	}
	return k.t.save(w)
}

// LoadKdTree2D reconstructs a tree previously written by Save.
func LoadKdTree2D(r io.Reader) (*KdTree2D, error) {
	if err := codec.ReadHeader(r, magic2D); err != nil {
		return nil, err
	}
	t, err := loadTree(r)
	if err != nil {
		return nil, err
	}
	if t.dim != 2 {
		return nil, spartutil.NewFormatError("expected a 2-dimensional tree, got %d", t.dim)
	}
	return &KdTree2D{t: t}, nil
}
