package mesh

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in model space
type Vec3 [3]float64

// Sub returns a - b
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Cross returns the cross product a x b
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Dot returns the dot product of a and b
func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Len returns the euclidean length of a
func (a Vec3) Len() float64 {
	return math.Sqrt(a.Dot(a))
}

// Mesh is an indexed triangle mesh. Face indices are 0-based.
type Mesh struct {
	Vertices []Vec3
	Faces    [][3]int
}

// Box is an axis-aligned bounding box
type Box struct {
	Min Vec3
	Max Vec3
}

// Size returns the extent of the box along each axis
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box
func (b Box) Center() Vec3 {
	return Vec3{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2, (b.Min[2] + b.Max[2]) / 2}
}

// IsEmpty reports whether the mesh has no faces
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Faces) == 0
}

// Bounds returns the bounding box of all vertices
func (m *Mesh) Bounds() Box {
	if m == nil || len(m.Vertices) == 0 {
		return Box{}
	}
	b := Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], v[i])
			b.Max[i] = math.Max(b.Max[i], v[i])
		}
	}
	return b
}

// Volume returns the enclosed volume using the divergence theorem.
// The result is only meaningful for closed, consistently oriented meshes.
func (m *Mesh) Volume() float64 {
	if m == nil {
		return 0
	}
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}

// Validate checks that every face references an existing vertex
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d references vertex %d, mesh has %d vertices", i, idx, n)
			}
		}
	}
	return nil
}

// Normalized returns a copy of the mesh with its vertex mean moved to the
// origin and its longest bounding box axis scaled to length 1
func (m *Mesh) Normalized() *Mesh {
	out := &Mesh{
		Vertices: make([]Vec3, len(m.Vertices)),
		Faces:    append([][3]int(nil), m.Faces...),
	}
	b := m.Bounds()
	size := b.Size()
	longest := math.Max(size[0], math.Max(size[1], size[2]))
	if longest == 0 {
		longest = 1
	}
	var c Vec3
	for _, v := range m.Vertices {
		c = Vec3{c[0] + v[0], c[1] + v[1], c[2] + v[2]}
	}
	if n := float64(len(m.Vertices)); n > 0 {
		c = Vec3{c[0] / n, c[1] / n, c[2] / n}
	}
	for i, v := range m.Vertices {
		d := v.Sub(c)
		out.Vertices[i] = Vec3{d[0] / longest, d[1] / longest, d[2] / longest}
	}
	return out
}

// Repair returns a cleaned copy of the mesh. Vertices closer than tol
// are welded, faces that collapse to a line or point are dropped together
// with exact duplicates, and unreferenced vertices are removed.
func (m *Mesh) Repair(tol float64) *Mesh {
	if tol <= 0 {
		tol = 1e-9
	}
	type cell [3]int64
	key := func(v Vec3) cell {
		return cell{
			int64(math.Round(v[0] / tol)),
			int64(math.Round(v[1] / tol)),
			int64(math.Round(v[2] / tol)),
		}
	}

	welded := make(map[cell]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	var verts []Vec3
	for i, v := range m.Vertices {
		k := key(v)
		if j, ok := welded[k]; ok {
			remap[i] = j
			continue
		}
		welded[k] = len(verts)
		remap[i] = len(verts)
		verts = append(verts, v)
	}

	seen := make(map[[3]int]struct{}, len(m.Faces))
	faces := make([][3]int, 0, len(m.Faces))
	areaTol := tol * tol
	for _, f := range m.Faces {
		a, b, c := remap[f[0]], remap[f[1]], remap[f[2]]
		if a == b || b == c || a == c {
			continue
		}
		n := verts[b].Sub(verts[a]).Cross(verts[c].Sub(verts[a]))
		if n.Len() <= areaTol {
			continue
		}
		canon := canonicalFace(a, b, c)
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		faces = append(faces, [3]int{a, b, c})
	}

	// compact
	used := make([]int, len(verts))
	for i := range used {
		used[i] = -1
	}
	out := &Mesh{Faces: faces}
	for fi, f := range faces {
		for k, idx := range f {
			if used[idx] < 0 {
				used[idx] = len(out.Vertices)
				out.Vertices = append(out.Vertices, verts[idx])
			}
			out.Faces[fi][k] = used[idx]
		}
	}
	return out
}

// canonicalFace rotates the index triple so the smallest index comes first,
// keeping winding order
func canonicalFace(a, b, c int) [3]int {
	switch {
	case a <= b && a <= c:
		return [3]int{a, b, c}
	case b <= a && b <= c:
		return [3]int{b, c, a}
	default:
		return [3]int{c, a, b}
	}
}
