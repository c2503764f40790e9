package rtree

import (
	"io"

	"github.com/habedi/spart-go/pkg/spart/codec"
	"github.com/habedi/spart-go/pkg/spart/internal/rtreecore"
	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

const magic3D = "RTR3"

// Point3D is a 3D point together with its opaque payload.
type Point3D struct {
	X, Y, Z float64
	Data    payload.Value
}

// RTree3D is a classic R-tree over 3D points with node capacity Capacity.
type RTree3D struct {
	t *rtreecore.Tree
}

// NewRTree3D constructs an empty 3D R-tree with the given per-node
// capacity (C >= 1).
func NewRTree3D(capacity int) (*RTree3D, error) {
	if capacity <= 0 {
		return nil, spartutil.NewInvalidArgument("capacity must be >= 1, got %d", capacity)
	}
	return &RTree3D{t: rtreecore.New(3, capacity, minFillClassic(capacity), classicStrategy())}, nil
}

// Len returns the number of points stored.
func (r *RTree3D) Len() int { return r.t.Len() }

// Insert adds p to the tree.
func (r *RTree3D) Insert(p Point3D) {
	r.t.Insert([]float64{p.X, p.Y, p.Z}, p.Data)
}

// InsertBulk inserts every point in ps, equivalent to inserting them one
// at a time in order.
func (r *RTree3D) InsertBulk(ps []Point3D) {
	for _, p := range ps {
		r.Insert(p)
	}
}

// Delete removes one point equal to p (coordinates and payload) if
// present.
func (r *RTree3D) Delete(p Point3D) bool {
	return r.t.Delete([]float64{p.X, p.Y, p.Z}, p.Data)
}

// KNNSearch returns the k points closest to (x, y, z), ascending by
// distance.
func (r *RTree3D) KNNSearch(x, y, z float64, k int) ([]Point3D, error) {
	if k < 0 {
		return nil, spartutil.NewInvalidArgument("k must be >= 0, got %d", k)
	}
	return toPoints3D(r.t.KNNSearch([]float64{x, y, z}, k)), nil
}

// RangeSearch returns every point within radius r (inclusive) of
// (x, y, z).
func (r *RTree3D) RangeSearch(x, y, z float64, rad float64) ([]Point3D, error) {
	if rad < 0 {
		return nil, spartutil.NewInvalidArgument("r must be >= 0, got %g", rad)
	}
	return toPoints3D(r.t.RangeSearch([]float64{x, y, z}, rad)), nil
}

func toPoints3D(entries []rtreecore.Entry) []Point3D {
	out := make([]Point3D, len(entries))
	for i, e := range entries {
		out[i] = Point3D{X: e.Coords[0], Y: e.Coords[1], Z: e.Coords[2], Data: e.Data}
	}
	return out
}

// Save writes the tree's binary representation to w.
func (r *RTree3D) Save(w io.Writer) error {
	if err := codec.WriteHeader(w, magic3D); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(r.t.Capacity)); err != nil {
		return spartutil.NewIOError(err)
	}
	return r.t.Save(w)
}

// LoadRTree3D reconstructs a tree previously written by Save.
func LoadRTree3D(rd io.Reader) (*RTree3D, error) {
	if err := codec.ReadHeader(rd, magic3D); err != nil {
		return nil, err
	}
	capU, err := codec.ReadUint32(rd)
	if err != nil {
		return nil, spartutil.NewFormatError("truncated capacity: %s", err)
	}
	capacity := int(capU)
	t, err := rtreecore.Load(rd, 3, capacity, minFillClassic(capacity), classicStrategy())
	if err != nil {
		return nil, err
	}
	return &RTree3D{t: t}, nil
}
