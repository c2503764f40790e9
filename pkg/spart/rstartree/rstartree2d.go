// Package rstartree implements the R*-tree: R-tree's node shape with a
// locality-aware ChooseSubtree, a margin-then-overlap split, and forced
// reinsertion on a node's first overflow at each level per insertion.
package rstartree

import (
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/internal/rtreecore"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic2D = "RST2"

// Point2D is a 2D point together with its opaque payload.
type Point2D struct {
	X, Y float64
	Data payload.Value
}

// RStarTree2D is an R*-tree over 2D points with node capacity Capacity.
type RStarTree2D struct {
	t *rtreecore.Tree
}

// NewRStarTree2D constructs an empty 2D R*-tree with the given per-node
// capacity (C >= 1).
func NewRStarTree2D(capacity int) (*RStarTree2D, error) {
	if capacity <= 0 {
		return nil, spartutil.NewInvalidArgument("capacity must be >= 1, got %d", capacity)
	}
	return &RStarTree2D{t: rtreecore.New(2, capacity, minFillRStar(capacity), rStarStrategy())}, nil
}

// Len returns the number of points stored.
func (r *RStarTree2D) Len() int { return r.t.Len() }

// Insert adds p to the tree.
func (r *RStarTree2D) Insert(p Point2D) {
	r.t.Insert([]float64{p.X, p.Y}, p.Data)
}

// InsertBulk inserts every point in ps, equivalent to inserting them one
// at a time in order.
func (r *RStarTree2D) InsertBulk(ps []Point2D) {
	for _, p := range ps {
		r.Insert(p)
	}
}

// Delete removes one point equal to p (coordinates and payload) if
// present.
func (r *RStarTree2D) Delete(p Point2D) bool {
	return r.t.Delete([]float64{p.X, p.Y}, p.Data)
}

// KNNSearch returns the k points closest to (x, y), ascending by distance.
func (r *RStarTree2D) KNNSearch(x, y float64, k int) ([]Point2D, error) {
	if k < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", k)
	}
	return toPoints2D(r.t.KNNSearch([]float64{x, y}, k)), nil
}

// RangeSearch returns every point within radius r (inclusive) of (x, y).
func (r *RStarTree2D) RangeSearch(x, y float64, rad float64) ([]Point2D, error) {
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
func (r *RStarTree2D) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic2D); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(r.t.Capacity)); err != nil {
		return spartutil.NewIOError(err)
	}
	return r.t.Save(w)
}

// LoadRStarTree2D reconstructs a tree previously written by Save.
func LoadRStarTree2D(rd io.Reader) (*RStarTree2D, error) {
	if err := codec.ReadHeader(rd, magic2D); err != nil {
		return nil, err
	}
	capU, err := codec.ReadUint32(rd)
	if err != nil {
		return nil, spartutil.NewFormatError("truncated capacity: %s", err)
	}
	capacity := int(capU)
	t, err := rtreecore.Load(rd, 2, capacity, minFillRStar(capacity), rStarStrategy())
	if err != nil {
		return nil, err
	}
	return &RStarTree2D{t: t}, nil
}
