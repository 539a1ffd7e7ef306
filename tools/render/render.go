// Package render rasterises six orthographic views of a triangle mesh.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/image/vector"

	"shape-studio/tools/logger"
	"shape-studio/tools/mesh"
)

// Options configures a Renderer
type Options struct {
	Size    int // edge length of the square images in pixels
	Quality int // JPEG quality, 1-100
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{Size: 512, Quality: 90}
}

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	surface    = [3]float64{176, 196, 222}
)

// Renderer owns the single rasteriser of the process. Calls are
// serialised.
type Renderer struct {
	mu     sync.Mutex
	opts   Options
	raster *vector.Rasterizer
	log    *logger.Logger
}

// New creates a renderer
func New(opts Options, log *logger.Logger) *Renderer {
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if log == nil {
		log = logger.Default()
	}
	return &Renderer{
		opts:   opts,
		raster: vector.NewRasterizer(opts.Size, opts.Size),
		log:    log.WithPrefix("render"),
	}
}

// Render writes the six views of m into dir and returns the validated set.
// The mesh is centred and its longest axis scaled to 1 first.
func (r *Renderer) Render(m *mesh.Mesh, dir string) (*ViewSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &RenderError{Dir: dir, Err: err}
	}
	if m == nil {
		m = &mesh.Mesh{}
	}
	if err := m.Validate(); err != nil {
		return nil, &RenderError{Dir: dir, Err: err}
	}
	if m.IsEmpty() {
		r.log.Warn("rendering an empty mesh")
	}
	norm := m.Normalized()

	vs := ViewSetAt(dir)
	for _, img := range vs.Images {
		if err := r.writeView(norm, img); err != nil {
			return nil, &RenderError{Dir: dir, View: img.View.Name, Err: err}
		}
	}
	if err := vs.Validate(); err != nil {
		return nil, err
	}
	r.log.Debug("wrote %d views to %s", len(vs.Images), dir)
	return vs, nil
}

func (r *Renderer) writeView(m *mesh.Mesh, img Image) error {
	rgba := r.draw(m, img.View)

	f, err := os.Create(img.Path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, rgba, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(img.Path), err)
	}
	return f.Close()
}

type projected struct {
	pts   [3][2]float32
	depth float64
	shade float64
}

// draw paints the mesh as seen from v using the painter's algorithm with
// flat Lambert shading
func (r *Renderer) draw(m *mesh.Mesh, v View) *image.RGBA {
	size := r.opts.Size
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	eye := mesh.Vec3(v.Eye)
	up := mesh.Vec3(v.Up)
	right := up.Cross(eye)
	scale := 0.8 * float64(size)
	half := float64(size) / 2

	faces := make([]projected, 0, len(m.Faces))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		l := n.Len()
		if l == 0 {
			continue
		}
		var p projected
		for i, q := range [3]mesh.Vec3{a, b, c} {
			p.pts[i] = [2]float32{
				float32(half + q.Dot(right)*scale),
				float32(half - q.Dot(up)*scale),
			}
			p.depth += q.Dot(eye) / 3
		}
		p.shade = 0.25 + 0.75*math.Abs(n.Dot(eye))/l
		faces = append(faces, p)
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	for _, p := range faces {
		r.raster.Reset(size, size)
		r.raster.MoveTo(p.pts[0][0], p.pts[0][1])
		r.raster.LineTo(p.pts[1][0], p.pts[1][1])
		r.raster.LineTo(p.pts[2][0], p.pts[2][1])
		r.raster.ClosePath()
		fill := color.RGBA{
			R: uint8(surface[0] * p.shade),
			G: uint8(surface[1] * p.shade),
			B: uint8(surface[2] * p.shade),
			A: 255,
		}
		r.raster.Draw(dst, dst.Bounds(), &image.Uniform{C: fill}, image.Point{})
	}
	return dst
}
