package kdtree

import (
	"container/heap"
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic3D = "KDT3"

// Point3D is a 3D point together with its opaque payload.
type Point3D struct {
	X, Y, Z float64
	Data    payload.Value
}

func (p Point3D) coords() []float64 { return []float64{p.X, p.Y, p.Z} }

func pointFromEntry3D(e entry) Point3D {
	return Point3D{X: e.coords[0], Y: e.coords[1], Z: e.coords[2], Data: e.data}
}

// KdTree3D is a k-d tree over 3D points, cycling the x, y and z axes with
// depth.
type KdTree3D struct {
	t *tree
}

// NewKdTree3D constructs an empty 3D k-d tree.
func NewKdTree3D() *KdTree3D {
	return &KdTree3D{t: newTree(3)}
}

// Len returns the number of points currently stored.
func (k *KdTree3D) Len() int { return k.t.size }

// Insert adds p by standard binary descent.
func (k *KdTree3D) Insert(p Point3D) {
	k.t.insert(entry{coords: p.coords(), data: p.Data})
}

// InsertBulk merges ps with whatever is already stored and rebuilds the
// tree as a balanced median split.
func (k *KdTree3D) InsertBulk(ps []Point3D) {
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
func (k *KdTree3D) Delete(p Point3D) bool {
	return k.t.delete(entry{coords: p.coords(), data: p.Data})
}

// KNNSearch returns the k points closest to (x, y, z), ascending by
// distance.
func (k *KdTree3D) KNNSearch(x, y, z float64, kk int) ([]Point3D, error) {
	if kk < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", kk)
	}
	if kk == 0 || k.t.root.IsNil() {
		return nil, nil
	}
	q := []float64{x, y, z}
	h := &boundedMaxHeap{}
	k.t.knn(k.t.root, q, kk, 0, h)
	out := make([]Point3D, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		out[i] = Point3D{X: c.coords[0], Y: c.coords[1], Z: c.coords[2], Data: c.data}
	}
	return out, nil
}

// RangeSearch returns every point within radius r (inclusive) of (x, y, z),
// in traversal order.
func (k *KdTree3D) RangeSearch(x, y, z float64, r float64) ([]Point3D, error) {
	if r < 0 {
		return nil, spartutil.NewInvalidArgument("r must be >= 0, got %g", r)
	}
	var out []entry
	k.t.rangeSearch(k.t.root, []float64{x, y, z}, r, 0, &out)
	pts := make([]Point3D, len(out))
	for i, e := range out {
		pts[i] = pointFromEntry3D(e)
	}
	return pts, nil
}

// Save writes the tree's binary representation to w.
func (k *KdTree3D) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic3D); err != nil {
		return err
	}
	return k.t.save(w)
}

// LoadKdTree3D reconstructs a tree previously written by Save.
func LoadKdTree3D(r io.Reader) (*KdTree3D, error) {
	if err := codec.ReadHeader(r, magic3D); err != nil {
		return nil, err
	}
	t, err := loadTree(r)
	if err != nil {
		return nil, err
	}
	if t.dim != 3 {
		return nil, spartutil.NewFormatError("expected a 3-dimensional tree, got %d", t.dim)
	}
	return &KdTree3D{t: t}, nil
}
