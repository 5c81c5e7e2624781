package geom

import (
	"encoding/json"
	"errors"
	"math"
)

// Axis indexes used by Vec3.Dim.
const (
	AxisX = iota
	AxisY
	AxisZ

	Dimensions = 3
)

var ErrDimNotEqual = errors.New("vector dimension is not 3")

// Vec3 is an immutable 3-D coordinate. Every operation returns a new value.
type Vec3 struct {
	X, Y, Z float64
}

func NewVec3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// FromSlice converts a three element slice into a Vec3.
func FromSlice(vec []float64) (Vec3, error) {
	if len(vec) != Dimensions {
		return Vec3{}, ErrDimNotEqual
	}
	return Vec3{X: vec[0], Y: vec[1], Z: vec[2]}, nil
}

func (v Vec3) Dimensions() int {
	return Dimensions
}

// Dim returns the component on the given axis.
func (v Vec3) Dim(idx int) float64 {
	switch idx {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	}
	panic("geom: axis out of range")
}

func (v Vec3) Points() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(value float64) Vec3 {
	return Vec3{X: v.X * value, Y: v.Y * value, Z: v.Z * value}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm is the Euclidean length of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector. The zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Dist is the Euclidean distance between two points.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Norm()
}

func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{X: math.Min(v.X, o.X), Y: math.Min(v.Y, o.Y), Z: math.Min(v.Z, o.Z)}
}

func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{X: math.Max(v.X, o.X), Y: math.Max(v.Y, o.Y), Z: math.Max(v.Z, o.Z)}
}

// Equal reports whether every component differs by no more than eps.
func (v Vec3) Equal(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps &&
		math.Abs(v.Y-o.Y) <= eps &&
		math.Abs(v.Z-o.Z) <= eps
}

// IsFinite is false when any component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range [Dimensions]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the vector as a [x, y, z] array.
func (v Vec3) MarshalJSON() ([]byte, error) {
	return json.Marshal([Dimensions]float64{v.X, v.Y, v.Z})
}

func (v *Vec3) UnmarshalJSON(b []byte) error {
	var raw []float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	vec, err := FromSlice(raw)
	if err != nil {
		return err
	}
	*v = vec
	return nil
}
