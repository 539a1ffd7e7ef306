// Package csg is the geometry kernel exposed to generated programs. A Shape
// wraps a signed distance field from sdfx; primitives and booleans compose
// fields, and Mesh extracts the boundary as an indexed triangle mesh.
//
// Kernel errors (for example a negative radius) do not panic. They are
// carried on the Shape and surface through Err once the program returns.
package csg

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Shape is the solid handle returned by create_object
type Shape struct {
	field sdf.SDF3
	err   error
}

// ErrEmpty is reported when an operation needs a non-empty shape
var ErrEmpty = errors.New("csg: empty shape")

func fromField(f sdf.SDF3, err error) *Shape {
	if err != nil {
		return &Shape{err: err}
	}
	return &Shape{field: f}
}

func failed(format string, args ...any) *Shape {
	return &Shape{err: fmt.Errorf(format, args...)}
}

// Empty returns a shape with no volume
func Empty() *Shape {
	return &Shape{}
}

// Cube returns a box with one corner at the origin and the opposite corner
// at (x, y, z)
func Cube(x, y, z float64) *Shape {
	return Box(x, y, z).Translate(x/2, y/2, z/2)
}

// Box returns a box of the given size centred on the origin
func Box(x, y, z float64) *Shape {
	if x <= 0 || y <= 0 || z <= 0 {
		return failed("csg: box size must be positive, got (%g, %g, %g)", x, y, z)
	}
	return fromField(sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0))
}

// Sphere returns a sphere of radius r centred on the origin
func Sphere(r float64) *Shape {
	if r <= 0 {
		return failed("csg: sphere radius must be positive, got %g", r)
	}
	return fromField(sdf.Sphere3D(r))
}

// Cylinder returns a cylinder along +Z with its base centred on the origin
func Cylinder(height, radius float64) *Shape {
	if height <= 0 || radius <= 0 {
		return failed("csg: cylinder height and radius must be positive, got (%g, %g)", height, radius)
	}
	return fromField(sdf.Cylinder3D(height, radius, 0)).Translate(0, 0, height/2)
}

// Cone returns a truncated cone along +Z with radius r0 at the base and r1
// at the top
func Cone(height, r0, r1 float64) *Shape {
	if height <= 0 || r0 < 0 || r1 < 0 || (r0 == 0 && r1 == 0) {
		return failed("csg: invalid cone (%g, %g, %g)", height, r0, r1)
	}
	return fromField(sdf.Cone3D(height, r0, r1, 0)).Translate(0, 0, height/2)
}

// Compose unions all given shapes
func Compose(shapes ...*Shape) *Shape {
	out := Empty()
	for _, s := range shapes {
		out = out.Union(s)
	}
	return out
}

// Err returns the first kernel error recorded while building the shape
func (s *Shape) Err() error {
	if s == nil {
		return ErrEmpty
	}
	return s.err
}

// IsEmpty reports whether the shape encloses no volume
func (s *Shape) IsEmpty() bool {
	return s == nil || s.field == nil
}

func (s *Shape) transform(m sdf.M44) *Shape {
	if s == nil {
		return failed("csg: nil shape operand")
	}
	if s.err != nil || s.IsEmpty() {
		return s
	}
	return &Shape{field: sdf.Transform3D(s.field, m)}
}

// Translate moves the shape by (x, y, z)
func (s *Shape) Translate(x, y, z float64) *Shape {
	return s.transform(sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates the shape by the given angles in degrees, about X first,
// then Y, then Z
func (s *Shape) Rotate(x, y, z float64) *Shape {
	m := sdf.RotateZ(radians(z)).Mul(sdf.RotateY(radians(y))).Mul(sdf.RotateX(radians(x)))
	return s.transform(m)
}

// Scale scales the shape about the origin
func (s *Shape) Scale(x, y, z float64) *Shape {
	if err := firstErr(s); err != nil {
		return &Shape{err: err}
	}
	if x == 0 || y == 0 || z == 0 {
		return failed("csg: scale factors must be non-zero, got (%g, %g, %g)", x, y, z)
	}
	return s.transform(sdf.Scale3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Union returns the shape covering both s and o
func (s *Shape) Union(o *Shape) *Shape {
	if err := firstErr(s, o); err != nil {
		return &Shape{err: err}
	}
	switch {
	case s.IsEmpty():
		return o
	case o.IsEmpty():
		return s
	}
	return &Shape{field: sdf.Union3D(s.field, o.field)}
}

// Difference returns s with o removed
func (s *Shape) Difference(o *Shape) *Shape {
	if err := firstErr(s, o); err != nil {
		return &Shape{err: err}
	}
	if s.IsEmpty() || o.IsEmpty() {
		return s
	}
	return &Shape{field: sdf.Difference3D(s.field, o.field)}
}

// Intersect returns the volume shared by s and o
func (s *Shape) Intersect(o *Shape) *Shape {
	if err := firstErr(s, o); err != nil {
		return &Shape{err: err}
	}
	if s.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	return &Shape{field: sdf.Intersect3D(s.field, o.field)}
}

// Evaluate returns the signed distance at p, positive outside. Empty shapes
// are outside everywhere.
func (s *Shape) Evaluate(x, y, z float64) float64 {
	if s.IsEmpty() {
		return math.Inf(1)
	}
	return s.field.Evaluate(v3.Vec{X: x, Y: y, Z: z})
}

// Bounds returns the bounding box of the shape as (min, max)
func (s *Shape) Bounds() (min, max [3]float64) {
	if s.IsEmpty() {
		return
	}
	bb := s.field.BoundingBox()
	return [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}, [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
}

func firstErr(shapes ...*Shape) error {
	for _, s := range shapes {
		if s == nil {
			return fmt.Errorf("csg: nil shape operand")
		}
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
