// Package rtree implements the classic Guttman R-tree: quadratic-cost
// splitting and least-enlargement subtree choice, over 2D and 3D points.
package rtree

import (
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/internal/rtreecore"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic2D = "RTR2"

// Point2D is a 2D point together with its opaque payload.
type Point2D struct {
	X, Y float64
	Data payload.Value
}

func classicStrategy() rtreecore.Strategy {
	return rtreecore.Strategy{ChooseSubtree: chooseSubtreeClassic, Split: quadraticSplit}
}

func minFillClassic(capacity int) int {
	m := (capacity + 1) / 2
	if m < 1 {
		m = 1
	}
	return m
}

// RTree2D is a classic R-tree over 2D points with node capacity Capacity.
type RTree2D struct {
	t *rtreecore.Tree
}

// NewRTree2D constructs an empty 2D R-tree with the given per-node
// capacity (C >= 1).
func NewRTree2D(capacity int) (*RTree2D, error) {
	if capacity <= 0 {
		return nil, spartutil.NewInvalidArgument("capacity must be >= 1, got %d", capacity)
	}
	return &RTree2D{t: rtreecore.New(2, capacity, minFillClassic(capacity), classicStrategy())}, nil
}

// Len returns the number of points stored.
func (r *RTree2D) Len() int { return r.t.Len() }

// Insert adds p to the tree.
func (r *RTree2D) Insert(p Point2D) {
	r.t.Insert([]float64{p.X, p.Y}, p.Data)
}

// InsertBulk inserts every point in ps, equivalent to inserting them one
// at a time in order.
func (r *RTree2D) InsertBulk(ps []Point2D) {
	for _, p := range ps {
		r.Insert(p)
	}
}

// Delete removes one point equal to p (coordinates and payload) if
// present.
func (r *RTree2D) Delete(p Point2D) bool {
	return r.t.Delete([]float64{p.X, p.Y}, p.Data)
}

// KNNSearch returns the k points closest to (x, y), ascending by distance.
func (r *RTree2D) KNNSearch(x, y float64, k int) ([]Point2D, error) {
	if k < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", k)
	}
	entries := r.t.KNNSearch([]float64{x, y}, k)
	return toPoints2D(entries), nil
}

// RangeSearch returns every point within radius r (inclusive) of (x, y).
func (r *RTree2D) RangeSearch(x, y float64, rad float64) ([]Point2D, error) {
	if rad < 0 {
		return nil, spartutil.NewInvalidArgument("r must be >= 0, got %g", rad)
	}
	return toPoints2D(r.t.RangeSearch([]float64{x, y}, rad)), nil
}

func toPoints2D(entries []rtreecore.Entry) []Point2D {
	out := make([]Point2D, len(entries))
	for i, e := range entries {
		out[i] = Point2D{X: e.Coords[0], Y: e.Coords[1], Data: e.Data}
	}
	return out
}

// Save writes the tree's binary representation to w.
func (r *RTree2D) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic2D); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(r.t.Capacity)); err != nil {
		return spartutil.NewIOError(err)
	}
	return r.t.Save(w)
}

// LoadRTree2D reconstructs a tree previously written by Save.
func LoadRTree2D(rd io.Reader) (*RTree2D, error) {
	if err := codec.ReadHeader(rd, magic2D); err != nil {
		return nil, err
	}
	capU, err := codec.ReadUint32(rd)
	if err != nil {
		return nil, spartutil.NewFormatError("truncated capacity: %s", err)
	}
	capacity := int(capU)
	t, err := rtreecore.Load(rd, 2, capacity, minFillClassic(capacity), classicStrategy())
	if err != nil {
		return nil, err
	}
	return &RTree2D{t: t}, nil
}
