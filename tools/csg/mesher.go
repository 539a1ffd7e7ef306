package csg

import (
	"github.com/deadsy/sdfx/render"

	"shape-studio/tools/mesh"
)

// DefaultCells is the number of grid cells along the longest bounding box
// axis used when meshing
const DefaultCells = 64

// Solid is an executed shape together with its boundary mesh
type Solid struct {
	Shape *Shape
	Mesh  *mesh.Mesh
}

// Volume returns the enclosed volume of the solid's mesh
func (s *Solid) Volume() float64 {
	if s == nil {
		return 0
	}
	return s.Mesh.Volume()
}

// Mesh extracts the zero level set of the shape with sdfx's uniform marching
// cubes, using the given number of cells along the longest axis. The result
// is a triangle soup with three vertices per face; Repair welds it into an
// indexed mesh.
func (s *Shape) Mesh(cells int) *mesh.Mesh {
	out := &mesh.Mesh{}
	if s.IsEmpty() || s.Err() != nil {
		return out
	}
	if cells <= 0 {
		cells = DefaultCells
	}

	triangles := render.ToTriangles(s.field, render.NewMarchingCubesUniform(cells))
	out.Vertices = make([]mesh.Vec3, 0, 3*len(triangles))
	out.Faces = make([][3]int, 0, len(triangles))
	for _, t := range triangles {
		base := len(out.Vertices)
		for _, v := range t {
			out.Vertices = append(out.Vertices, mesh.Vec3{v.X, v.Y, v.Z})
		}
		out.Faces = append(out.Faces, [3]int{base, base + 1, base + 2})
	}
	return out
}
