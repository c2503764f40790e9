package geom

import "math"

// Box2D is an axis-aligned rectangle. Degenerate boxes (Min == Max) are
// legal and represent a single point.
type Box2D struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Box3D is an axis-aligned rectangular prism.
type Box3D struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// PointBox2D returns the degenerate box covering exactly p.
func PointBox2D(p Point2D) Box2D {
	return Box2D{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
}

// PointBox3D returns the degenerate box covering exactly p.
func PointBox3D(p Point3D) Box3D {
	return Box3D{MinX: p.X, MinY: p.Y, MinZ: p.Z, MaxX: p.X, MaxY: p.Y, MaxZ: p.Z}
}

// Contains reports whether p lies inside b, inclusive of the boundary.
func (b Box2D) Contains(p Point2D) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Contains reports whether p lies inside b, inclusive of the boundary.
func (b Box3D) Contains(p Point3D) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// ContainsBox reports whether o lies entirely inside b.
func (b Box2D) ContainsBox(o Box2D) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX && o.MinY >= b.MinY && o.MaxY <= b.MaxY
}

// ContainsBox reports whether o lies entirely inside b.
func (b Box3D) ContainsBox(o Box3D) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX &&
		o.MinY >= b.MinY && o.MaxY <= b.MaxY &&
		o.MinZ >= b.MinZ && o.MaxZ <= b.MaxZ
}

// Overlaps reports whether b and o share any area, including touching
// borders.
func (b Box2D) Overlaps(o Box2D) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX && b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// Overlaps reports whether b and o share any volume, including touching
// faces.
func (b Box3D) Overlaps(o Box3D) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX &&
		b.MinY <= o.MaxY && b.MaxY >= o.MinY &&
		b.MinZ <= o.MaxZ && b.MaxZ >= o.MinZ
}

// Union returns the tight bounding box of b and o.
func (b Box2D) Union(o Box2D) Box2D {
	return Box2D{
		MinX: min(b.MinX, o.MinX), MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX), MaxY: max(b.MaxY, o.MaxY),
	}
}

// Union returns the tight bounding box of b and o.
func (b Box3D) Union(o Box3D) Box3D {
	return Box3D{
		MinX: min(b.MinX, o.MinX), MinY: min(b.MinY, o.MinY), MinZ: min(b.MinZ, o.MinZ),
		MaxX: max(b.MaxX, o.MaxX), MaxY: max(b.MaxY, o.MaxY), MaxZ: max(b.MaxZ, o.MaxZ),
	}
}

// Area returns the area of b.
func (b Box2D) Area() float64 {
	return (b.MaxX - b.MinX) * (b.MaxY - b.MinY)
}

// Volume returns the volume of b.
func (b Box3D) Volume() float64 {
	return (b.MaxX - b.MinX) * (b.MaxY - b.MinY) * (b.MaxZ - b.MinZ)
}

// Perimeter returns the perimeter of b, used by the R*-tree split heuristic.
func (b Box2D) Perimeter() float64 {
	return 2 * ((b.MaxX - b.MinX) + (b.MaxY - b.MinY))
}

// Perimeter returns the total edge length of b, the 3D generalisation of
// Box2D.Perimeter used by the R*-tree split heuristic.
func (b Box3D) Perimeter() float64 {
	return 4 * ((b.MaxX - b.MinX) + (b.MaxY - b.MinY) + (b.MaxZ - b.MinZ))
}

// Enlargement returns how much adding o to b would grow b's area.
func (b Box2D) Enlargement(o Box2D) float64 {
	return b.Union(o).Area() - b.Area()
}

// Enlargement returns how much adding o to b would grow b's volume.
func (b Box3D) Enlargement(o Box3D) float64 {
	return b.Union(o).Volume() - b.Volume()
}

// Overlap returns the area of intersection between b and o, or zero if they
// don't intersect.
func (b Box2D) Overlap(o Box2D) float64 {
	dx := min(b.MaxX, o.MaxX) - max(b.MinX, o.MinX)
	if dx <= 0 {
		return 0
	}
	dy := min(b.MaxY, o.MaxY) - max(b.MinY, o.MinY)
	if dy <= 0 {
		return 0
	}
	return dx * dy
}

// Overlap returns the volume of intersection between b and o, or zero if
// they don't intersect.
func (b Box3D) Overlap(o Box3D) float64 {
	dx := min(b.MaxX, o.MaxX) - max(b.MinX, o.MinX)
	if dx <= 0 {
		return 0
	}
	dy := min(b.MaxY, o.MaxY) - max(b.MinY, o.MinY)
	if dy <= 0 {
		return 0
	}
	dz := min(b.MaxZ, o.MaxZ) - max(b.MinZ, o.MinZ)
	if dz <= 0 {
		return 0
	}
	return dx * dy * dz
}

// MinDistance returns the distance from p to the closest point of b. A point
// inside b has MinDistance 0.
func (b Box2D) MinDistance(p Point2D) float64 {
	return sqrt(b.MinDistanceSquared(p))
}

// MinDistanceSquared is MinDistance squared, for hot-path pruning.
func (b Box2D) MinDistanceSquared(p Point2D) float64 {
	dx := p.X - clamp(p.X, b.MinX, b.MaxX)
	dy := p.Y - clamp(p.Y, b.MinY, b.MaxY)
	return dx*dx + dy*dy
}

// MinDistance returns the distance from p to the closest point of b.
func (b Box3D) MinDistance(p Point3D) float64 {
	return sqrt(b.MinDistanceSquared(p))
}

// MinDistanceSquared is MinDistance squared, for hot-path pruning.
func (b Box3D) MinDistanceSquared(p Point3D) float64 {
	dx := p.X - clamp(p.X, b.MinX, b.MaxX)
	dy := p.Y - clamp(p.Y, b.MinY, b.MaxY)
	dz := p.Z - clamp(p.Z, b.MinZ, b.MaxZ)
	return dx*dx + dy*dy + dz*dz
}

// Center returns the midpoint of b.
func (b Box2D) Center() Point2D {
	return Point2D{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Center returns the midpoint of b.
func (b Box3D) Center() Point3D {
	return Point3D{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2, Z: (b.MinZ + b.MaxZ) / 2}
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

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
