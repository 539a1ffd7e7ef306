package render

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// View is one canonical axis-aligned viewpoint
type View struct {
	Name  string // file stem, e.g. pos_x
	Label string // human label shown to the model, e.g. right
	Eye   [3]float64
	Up    [3]float64
}

// Views is the fixed, ordered set of six viewpoints. The camera sits on the
// Eye axis looking at the origin.
var Views = []View{
	{Name: "pos_x", Label: "right", Eye: [3]float64{1, 0, 0}, Up: [3]float64{0, 0, 1}},
	{Name: "neg_x", Label: "left", Eye: [3]float64{-1, 0, 0}, Up: [3]float64{0, 0, 1}},
	{Name: "pos_y", Label: "top", Eye: [3]float64{0, 1, 0}, Up: [3]float64{0, 0, 1}},
	{Name: "neg_y", Label: "bottom", Eye: [3]float64{0, -1, 0}, Up: [3]float64{0, 0, 1}},
	{Name: "pos_z", Label: "front", Eye: [3]float64{0, 0, 1}, Up: [3]float64{0, 1, 0}},
	{Name: "neg_z", Label: "back", Eye: [3]float64{0, 0, -1}, Up: [3]float64{0, 1, 0}},
}

// Extension is the file extension of rendered views
const Extension = ".jpeg"

// Image is one view on disk
type Image struct {
	View View
	Path string
}

// MediaType returns the image media type derived from the file extension
func (i Image) MediaType() string {
	ext := strings.ToLower(filepath.Ext(i.Path))
	if ext == ".jpg" {
		ext = ".jpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/" + strings.TrimPrefix(ext, ".")
}

// Base64 reads the image and returns its standard base64 encoding
func (i Image) Base64() (string, error) {
	data, err := os.ReadFile(i.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s view: %w", i.View.Label, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ViewSet is the six views of one mesh, in Views order
type ViewSet struct {
	Dir    string
	Images []Image
}

// ViewSetAt describes the views expected under dir without touching the
// filesystem
func ViewSetAt(dir string) *ViewSet {
	vs := &ViewSet{Dir: dir, Images: make([]Image, len(Views))}
	for i, v := range Views {
		vs.Images[i] = Image{View: v, Path: filepath.Join(dir, v.Name+Extension)}
	}
	return vs
}

// LoadViewSet locates the six views under dir. Each view may be stored as
// .jpeg, .jpg or .png. The result is validated.
func LoadViewSet(dir string) (*ViewSet, error) {
	vs := &ViewSet{Dir: dir, Images: make([]Image, len(Views))}
	for i, v := range Views {
		path := filepath.Join(dir, v.Name+Extension)
		for _, ext := range []string{Extension, ".jpg", ".png"} {
			candidate := filepath.Join(dir, v.Name+ext)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		vs.Images[i] = Image{View: v, Path: path}
	}
	if err := vs.Validate(); err != nil {
		return nil, err
	}
	return vs, nil
}

// Validate checks that all six views exist and are non-empty
func (vs *ViewSet) Validate() error {
	if vs == nil {
		return &RenderError{Err: fmt.Errorf("no view set")}
	}
	if len(vs.Images) != len(Views) {
		return &RenderError{Dir: vs.Dir, Err: fmt.Errorf("view set has %d images, want %d", len(vs.Images), len(Views))}
	}
	for _, img := range vs.Images {
		info, err := os.Stat(img.Path)
		if err != nil {
			return &RenderError{Dir: vs.Dir, View: img.View.Name, Err: err}
		}
		if info.IsDir() || info.Size() == 0 {
			return &RenderError{Dir: vs.Dir, View: img.View.Name, Err: fmt.Errorf("%s is empty", img.Path)}
		}
	}
	return nil
}

// RenderError reports a failure to produce or load a view set
type RenderError struct {
	Dir  string
	View string
	Err  error
}

func (e *RenderError) Error() string {
	if e.View != "" {
		return fmt.Sprintf("render %s: view %s: %v", e.Dir, e.View, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Dir, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
