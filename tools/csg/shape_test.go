package csg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeIsCornerAnchored(t *testing.T) {
	c := Cube(2, 2, 2)
	require.NoError(t, c.Err())
	lo, hi := c.Bounds()
	assert.InDeltaSlice(t, []float64{0, 0, 0}, lo[:], 1e-9)
	assert.InDeltaSlice(t, []float64{2, 2, 2}, hi[:], 1e-9)
	assert.Less(t, c.Evaluate(1, 1, 1), 0.0)
	assert.Greater(t, c.Evaluate(-1, 1, 1), 0.0)
}

func TestMeshVolume(t *testing.T) {
	s := Sphere(1)
	m := s.Mesh(48).Repair(1e-9)
	require.NoError(t, m.Validate())
	require.NotEmpty(t, m.Faces)
	assert.InEpsilon(t, 4.0/3.0*math.Pi, m.Volume(), 0.03)

	c := Cube(1, 2, 3).Mesh(48).Repair(1e-9)
	assert.InEpsilon(t, 6.0, c.Volume(), 0.02)
}

func TestMeshWeldsIntoClosedSurface(t *testing.T) {
	soup := Sphere(1).Mesh(16)
	require.NotEmpty(t, soup.Faces)
	assert.Len(t, soup.Vertices, 3*len(soup.Faces))

	m := soup.Repair(1e-9)
	assert.Less(t, len(m.Vertices), len(soup.Vertices)/2)

	// every edge of a closed surface is shared by exactly two faces
	edges := make(map[[2]int]int)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]int{a, b}]++
		}
	}
	for e, n := range edges {
		assert.Equal(t, 2, n, "edge %v", e)
	}
}

func TestBooleans(t *testing.T) {
	a := Cube(2, 2, 2)
	b := Cube(2, 2, 2).Translate(1, 0, 0)

	union := a.Union(b)
	diff := a.Difference(b)
	inter := a.Intersect(b)
	for _, s := range []*Shape{union, diff, inter} {
		require.NoError(t, s.Err())
	}

	assert.InEpsilon(t, 12.0, union.Mesh(48).Volume(), 0.02)
	assert.InEpsilon(t, 4.0, diff.Mesh(48).Volume(), 0.03)
	assert.InEpsilon(t, 4.0, inter.Mesh(48).Volume(), 0.03)
}

func TestEmptyShapes(t *testing.T) {
	e := Empty()
	assert.True(t, e.IsEmpty())
	assert.True(t, e.Mesh(16).IsEmpty())
	assert.True(t, math.IsInf(e.Evaluate(0, 0, 0), 1))

	s := Sphere(1)
	assert.Same(t, s, e.Union(s))
	assert.True(t, s.Intersect(e).IsEmpty())
	assert.Same(t, s, s.Difference(e))
	assert.False(t, Compose(Sphere(1), Cube(1, 1, 1).Translate(3, 0, 0)).IsEmpty())
}

func TestKernelErrorsPropagate(t *testing.T) {
	bad := Sphere(-1)
	require.Error(t, bad.Err())

	combined := Cube(1, 1, 1).Union(bad).Translate(1, 0, 0).Rotate(0, 0, 45)
	assert.ErrorIs(t, combined.Err(), bad.Err())
	assert.True(t, combined.Mesh(16).IsEmpty())

	assert.Error(t, Cube(1, 1, 1).Scale(0, 1, 1).Err())
	assert.Error(t, Cylinder(0, 1).Err())
	assert.Error(t, Cube(1, 1, 1).Union(nil).Err())
}

func TestRotateDegrees(t *testing.T) {
	// a long bar along X turned 90 degrees about Z lies along Y
	bar := Box(4, 0.5, 0.5).Rotate(0, 0, 90)
	require.NoError(t, bar.Err())
	assert.Less(t, bar.Evaluate(0, 1.5, 0), 0.0)
	assert.Greater(t, bar.Evaluate(1.5, 0, 0), 0.0)
}

func TestSymmetricDifference(t *testing.T) {
	a := Cube(1, 1, 1)

	same := SymmetricDifference(a, Cube(1, 1, 1), 32)
	assert.InDelta(t, 0, same.Total(), 1e-9)

	far := SymmetricDifference(a, Cube(1, 1, 1).Translate(5, 0, 0), 96)
	assert.InEpsilon(t, 1.0, far.CurrentMinusTarget, 0.1)
	assert.InEpsilon(t, 1.0, far.TargetMinusCurrent, 0.1)
	assert.InEpsilon(t, 2.0, far.Total(), 0.1)

	assert.InEpsilon(t, 1.0, SampledVolume(a, 32), 0.05)
	assert.Equal(t, 0.0, SymmetricDifference(Empty(), Empty(), 8).Total())
}
