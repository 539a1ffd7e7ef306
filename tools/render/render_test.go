package render

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shape-studio/tools/logger"
	"shape-studio/tools/mesh"
)

func tetrahedron() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Faces:    [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestRenderWritesSixViews(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iteration_000")
	r := New(Options{Size: 64, Quality: 80}, logger.Discard())

	vs, err := r.Render(tetrahedron(), dir)
	require.NoError(t, err)
	require.Len(t, vs.Images, 6)

	names := make([]string, 0, 6)
	for _, img := range vs.Images {
		names = append(names, filepath.Base(img.Path))

		f, err := os.Open(img.Path)
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Width)
		assert.Equal(t, 64, cfg.Height)
	}
	assert.Equal(t, []string{
		"pos_x.jpeg", "neg_x.jpeg", "pos_y.jpeg", "neg_y.jpeg", "pos_z.jpeg", "neg_z.jpeg",
	}, names)
}

func TestRenderShadesTheShape(t *testing.T) {
	r := New(Options{Size: 32}, logger.Discard())
	img := r.draw(tetrahedron().Normalized(), Views[4])

	inside := img.RGBAAt(10, 21)
	corner := img.RGBAAt(0, 0)
	assert.Equal(t, background, corner)
	assert.NotEqual(t, background, inside)
}

func TestRenderRejectsInvalidMesh(t *testing.T) {
	r := New(Options{Size: 16}, logger.Discard())
	bad := &mesh.Mesh{Vertices: []mesh.Vec3{{0, 0, 0}}, Faces: [][3]int{{0, 1, 2}}}

	_, err := r.Render(bad, t.TempDir())
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
}

func TestLoadViewSet(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadViewSet(dir)
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "pos_x", rerr.View)

	for _, v := range Views {
		ext := Extension
		if v.Name == "neg_z" {
			ext = ".png"
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, v.Name+ext), []byte("x"), 0o644))
	}
	vs, err := LoadViewSet(dir)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", vs.Images[0].MediaType())
	assert.Equal(t, "image/png", vs.Images[5].MediaType())
	assert.Equal(t, "back", vs.Images[5].View.Label)

	data, err := vs.Images[0].Base64()
	require.NoError(t, err)
	assert.Equal(t, "eA==", data)
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	for _, v := range Views {
		require.NoError(t, os.WriteFile(filepath.Join(dir, v.Name+Extension), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pos_y.jpeg"), nil, 0o644))

	err := ViewSetAt(dir).Validate()
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "pos_y", rerr.View)
}
