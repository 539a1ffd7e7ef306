package sculptor

// DefaultGuide is the kernel reference shown to the model when no guide
// file is configured
const DefaultGuide = `# csg kernel quick reference

Programs are Go source in package main. They may import only "csg" and
"math". They must define:

    func create_object() *csg.Shape

Do not declare func main; programs that do are rejected.

## Primitives
  csg.Cube(x, y, z)           box with one corner at the origin
  csg.Box(x, y, z)            box centred on the origin
  csg.Sphere(r)               sphere centred on the origin
  csg.Cylinder(h, r)          cylinder along +z, base at z=0
  csg.Cone(h, r0, r1)         frustum along +z, radius r0 at z=0, r1 at z=h
  csg.Empty()                 nothing

## Transforms (return a new shape)
  s.Translate(x, y, z)
  s.Rotate(x, y, z)           degrees, applied about X then Y then Z
  s.Scale(x, y, z)

## Booleans (return a new shape)
  a.Union(b)
  a.Difference(b)             a minus b
  a.Intersect(b)
  csg.Compose(a, b, ...)      union of many shapes

## Example

package main

import "csg"

func create_object() *csg.Shape {
	cube := csg.Cube(0.4, 0.4, 0.4).Translate(0.4, 0, 0)
	sphere := csg.Sphere(0.15).Translate(-0.3, 0, 0)
	return cube.Union(sphere)
}
`
