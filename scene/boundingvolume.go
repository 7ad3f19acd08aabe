package scene

import "math"

// BoundingVolume is satisfied by every bounding-volume flavor named in §3:
// region, oriented box, sphere, and S2 cell.
type BoundingVolume interface {
	// Center returns the volume's center in its own local frame.
	Center() Vec3

	// DistanceSquaredTo returns the squared distance from point (already in
	// the volume's coordinate frame) to the nearest point on the volume, or
	// 0 if point is inside.
	DistanceSquaredTo(point Vec3) float64

	// Transform returns a copy of the volume transformed by m.
	Transform(m Mat4) BoundingVolume
}

// Region is a lat/lon/height box: [west, south, east, north, minHeight, maxHeight].
type Region struct {
	West, South, East, North   float64
	MinHeight, MaxHeight       float64
}

func (r Region) Center() Vec3 {
	return Vec3{
		X: (r.West + r.East) / 2,
		Y: (r.South + r.North) / 2,
		Z: (r.MinHeight + r.MaxHeight) / 2,
	}
}

func (r Region) DistanceSquaredTo(p Vec3) float64 {
	dx := axisDistance(p.X, r.West, r.East)
	dy := axisDistance(p.Y, r.South, r.North)
	dz := axisDistance(p.Z, r.MinHeight, r.MaxHeight)
	return DistanceSquared(Vec3{}, Vec3{dx, dy, dz})
}

func (r Region) Transform(m Mat4) BoundingVolume {
	// Regions are defined in a fixed geographic frame; only height scales
	// with the transform's max axis scale (matches the teacher's loose
	// terrain treatment referenced in §3).
	scale := m.MaxScaleComponent()
	return Region{r.West, r.South, r.East, r.North, r.MinHeight * scale, r.MaxHeight * scale}
}

// quarter splits a region into one of 4 (quadtree) children by (x,y) bits,
// or one of 8 (octree) by (x,y,z), halving lat/lon/height per §4.3.2.
func (r Region) Quarter(x, y int) Region {
	midLon := (r.West + r.East) / 2
	midLat := (r.South + r.North) / 2
	out := r
	if x == 0 {
		out.East = midLon
	} else {
		out.West = midLon
	}
	if y == 0 {
		out.North = midLat
	} else {
		out.South = midLat
	}
	return out
}

func (r Region) Octant(x, y, z int) Region {
	out := r.Quarter(x, y)
	midH := (r.MinHeight + r.MaxHeight) / 2
	if z == 0 {
		out.MaxHeight = midH
	} else {
		out.MinHeight = midH
	}
	return out
}

func axisDistance(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

// OrientedBox is a center plus three half-axis vectors (columns of a 3x3,
// stored flat) — the "box"[12] bounding volume of §6.4.
type OrientedBox struct {
	C          Vec3
	HalfAxisX  Vec3
	HalfAxisY  Vec3
	HalfAxisZ  Vec3
}

func (b OrientedBox) Center() Vec3 { return b.C }

func (b OrientedBox) DistanceSquaredTo(p Vec3) float64 {
	// Project (p - center) onto each half-axis; clamp to [-1,1] of the
	// half-axis length, accumulate the squared residual.
	rel := p.Sub(b.C)
	var total Vec3
	for _, axis := range []Vec3{b.HalfAxisX, b.HalfAxisY, b.HalfAxisZ} {
		lenSq := axis.LengthSquared()
		if lenSq == 0 {
			continue
		}
		t := rel.Dot(axis) / lenSq
		if t > 1 {
			t = 1
		} else if t < -1 {
			t = -1
		}
		total = total.Add(axis.Scale(t))
	}
	closest := b.C.Add(total)
	return DistanceSquared(p, closest)
}

func (b OrientedBox) Transform(m Mat4) BoundingVolume {
	zero := Vec3{}
	return OrientedBox{
		C:         m.TransformPoint(b.C),
		HalfAxisX: m.TransformPoint(b.HalfAxisX).Sub(m.TransformPoint(zero)),
		HalfAxisY: m.TransformPoint(b.HalfAxisY).Sub(m.TransformPoint(zero)),
		HalfAxisZ: m.TransformPoint(b.HalfAxisZ).Sub(m.TransformPoint(zero)),
	}
}

// Halve returns the child box for octant (x,y,z) each in {0,1}, per §4.3.2's
// "by half-axis vectors" rule.
func (b OrientedBox) Halve(x, y, z int) OrientedBox {
	hx, hy, hz := b.HalfAxisX.Scale(0.5), b.HalfAxisY.Scale(0.5), b.HalfAxisZ.Scale(0.5)
	sign := func(bit int) float64 {
		if bit == 0 {
			return -1
		}
		return 1
	}
	center := b.C.
		Add(hx.Scale(sign(x))).
		Add(hy.Scale(sign(y))).
		Add(hz.Scale(sign(z)))
	return OrientedBox{C: center, HalfAxisX: hx, HalfAxisY: hy, HalfAxisZ: hz}
}

// Sphere is a center + radius.
type Sphere struct {
	C Vec3
	R float64
}

func (s Sphere) Center() Vec3 { return s.C }

func (s Sphere) DistanceSquaredTo(p Vec3) float64 {
	d := math.Sqrt(DistanceSquared(p, s.C)) - s.R
	if d < 0 {
		return 0
	}
	return d * d
}

func (s Sphere) Transform(m Mat4) BoundingVolume {
	return Sphere{C: m.TransformPoint(s.C), R: s.R * m.MaxScaleComponent()}
}

// S2Cell is the "3DTILES_bounding_volume_S2" extension volume: an S2 cell
// token plus a height range. The S2 cell-covering geometry itself is an
// out-of-scope external concern (§1); this struct only carries the data
// needed for identity and height-based distance estimation.
type S2Cell struct {
	Token                         string
	MinimumHeight, MaximumHeight  float64
	// ApproxCenter approximates the cell center; a full S2 implementation
	// would decode Token into a cell ID and compute this geometrically.
	ApproxCenter Vec3
}

func (c S2Cell) Center() Vec3 { return c.ApproxCenter }

func (c S2Cell) DistanceSquaredTo(p Vec3) float64 {
	dz := axisDistance(p.Z, c.MinimumHeight, c.MaximumHeight)
	horiz := p.Sub(c.ApproxCenter)
	horiz.Z = 0
	return DistanceSquared(Vec3{}, Vec3{horiz.X, horiz.Y, dz})
}

func (c S2Cell) Transform(m Mat4) BoundingVolume {
	scale := m.MaxScaleComponent()
	return S2Cell{c.Token, c.MinimumHeight * scale, c.MaximumHeight * scale, m.TransformPoint(c.ApproxCenter)}
}
