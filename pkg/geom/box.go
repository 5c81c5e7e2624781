package geom

import (
	"math"
)

// Box is an axis-aligned bounding box. A box is valid when Min does not
// exceed Max on any axis.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// EmptyBox contains no point. It is the identity element of Union.
func EmptyBox() Box {
	return Box{
		Min: Vec3{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: Vec3{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// OpenBox contains every finite point.
func OpenBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: Vec3{X: -inf, Y: -inf, Z: -inf},
		Max: Vec3{X: inf, Y: inf, Z: inf},
	}
}

// PointBox is the degenerate box holding a single point.
func PointBox(p Vec3) Box {
	return Box{Min: p, Max: p}
}

func NewBox(min, max Vec3) Box {
	return Box{Min: min, Max: max}
}

func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b Box) IsOpen() bool {
	return math.IsInf(b.Min.X, -1) || math.IsInf(b.Min.Y, -1) || math.IsInf(b.Min.Z, -1) ||
		math.IsInf(b.Max.X, 1) || math.IsInf(b.Max.Y, 1) || math.IsInf(b.Max.Z, 1)
}

func (b Box) Contains(p Vec3) bool {
	return b.Min.X <= p.X && p.X <= b.Max.X &&
		b.Min.Y <= p.Y && p.Y <= b.Max.Y &&
		b.Min.Z <= p.Z && p.Z <= b.Max.Z
}

// Intersects reports whether the two closed boxes share at least one point.
func (b Box) Intersects(o Box) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return !(b.Max.X < o.Min.X || b.Min.X > o.Max.X ||
		b.Max.Y < o.Min.Y || b.Min.Y > o.Max.Y ||
		b.Max.Z < o.Min.Z || b.Min.Z > o.Max.Z)
}

func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Scale resizes the box about its center by factor on every axis.
// Empty and open boxes have no finite center and are returned unchanged.
func (b Box) Scale(factor float64) Box {
	if b.IsEmpty() || b.IsOpen() {
		return b
	}
	c := b.Center()
	return Box{
		Min: c.Add(b.Min.Sub(c).Scale(factor)),
		Max: c.Add(b.Max.Sub(c).Scale(factor)),
	}
}

func (b Box) Union(o Box) Box {
	return Box{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Intersect returns the common part of both boxes; the result may be empty.
func (b Box) Intersect(o Box) Box {
	return Box{Min: b.Min.Max(o.Min), Max: b.Max.Min(o.Max)}
}

func (b Box) Extend(p Vec3) Box {
	return b.Union(PointBox(p))
}

// Grow pads the box by r on every side.
func (b Box) Grow(r float64) Box {
	if b.IsEmpty() {
		return b
	}
	pad := Vec3{X: r, Y: r, Z: r}
	return Box{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}
