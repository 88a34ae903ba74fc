// Package synth draws small annotated beach scenes: a plain photograph and its dotted copy
// with a known list of dots. It feeds the smoke run of the CLI and the pipeline tests.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/sealions/internal/labels"
)

type Options struct {
	Width, Height int
	PerClass      int // animals per class
	Cell          int // grid cell holding one animal
	DotRadius     int
	Seed          int64
}

func DefaultOptions() Options {
	return Options{Width: 480, Height: 320, PerClass: 3, Cell: 64, DotRadius: 4, Seed: 1}
}

// Dot is a ground-truth annotation.
type Dot struct {
	X, Y  int
	Class labels.Class
}

type Scene struct {
	Train  *image.RGBA
	Dotted *image.RGBA
	Dots   []Dot // top-to-bottom, left-to-right
	// Blackout is the region erased in the dotted copy.
	Blackout image.Rectangle
}

// Generate lays animals out on a grid of Cell-sized squares. The last cell stays free for
// the blacked-out region.
func Generate(opts Options) (*Scene, error) {
	if opts.Cell < 4*opts.DotRadius || opts.DotRadius < 1 {
		return nil, fmt.Errorf("cell %d too small for dot radius %d", opts.Cell, opts.DotRadius)
	}
	cols, rows := opts.Width/opts.Cell, opts.Height/opts.Cell
	animals := opts.PerClass * len(labels.All)
	if cols*rows < animals+1 {
		return nil, fmt.Errorf("%dx%d image holds %d cells, need %d", opts.Width, opts.Height, cols*rows, animals+1)
	}

	rng := rand.New(rand.NewPCG(uint64(opts.Seed), 0x5ea))
	rect := image.Rect(0, 0, opts.Width, opts.Height)
	train := image.NewRGBA(rect)
	fillBeach(train, rng)

	cells := rng.Perm(cols*rows - 1)[:animals]
	jitter := max(opts.Cell/8, 1)
	scene := &Scene{Train: train}

	for i, cell := range cells {
		class := labels.All[i%len(labels.All)]
		cx := (cell%cols)*opts.Cell + opts.Cell/2 + rng.IntN(2*jitter+1) - jitter
		cy := (cell/cols)*opts.Cell + opts.Cell/2 + rng.IntN(2*jitter+1) - jitter
		drawAnimal(train, cx, cy, opts.Cell*3/10, opts.Cell/5, rng)
		scene.Dots = append(scene.Dots, Dot{X: cx, Y: cy, Class: class})
	}

	scene.Dotted = image.NewRGBA(rect)
	copy(scene.Dotted.Pix, train.Pix)
	for _, d := range scene.Dots {
		fillDisk(scene.Dotted, d.X, d.Y, opts.DotRadius, labels.DotColor(d.Class))
	}

	last := cols*rows - 1
	scene.Blackout = image.Rect(0, 0, opts.Cell, opts.Cell).
		Add(image.Pt((last%cols)*opts.Cell, (last/cols)*opts.Cell)).
		Inset(opts.Cell / 8)
	fillRect(scene.Dotted, scene.Blackout, color.RGBA{A: 255})

	sort.Slice(scene.Dots, func(i, j int) bool {
		if scene.Dots[i].Y != scene.Dots[j].Y {
			return scene.Dots[i].Y < scene.Dots[j].Y
		}
		return scene.Dots[i].X < scene.Dots[j].X
	})
	return scene, nil
}

// Counts returns the number of dots per class.
func (s *Scene) Counts() map[labels.Class]int {
	out := make(map[labels.Class]int)
	for _, d := range s.Dots {
		out[d.Class]++
	}
	return out
}

// WritePair stores the scene as <dir>/Train/<name> and <dir>/TrainDotted/<name>.
// The format follows the extension: .jpg/.jpeg or .png.
func (s *Scene) WritePair(dir, name string) error {
	for sub, img := range map[string]*image.RGBA{"Train": s.Train, "TrainDotted": s.Dotted} {
		d := filepath.Join(dir, sub)
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
		if err := writeImage(filepath.Join(d, name), img); err != nil {
			return err
		}
	}
	return nil
}

func writeImage(path string, img image.Image) error {
	var encode func(f *os.File) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 95}) }
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// fillBeach paints sand with per-pixel grain and a few darker wet patches.
func fillBeach(img *image.RGBA, rng *rand.Rand) {
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := rng.IntN(31) - 15
			img.SetRGBA(x, y, color.RGBA{
				R: clamp8(194 + n),
				G: clamp8(178 + n),
				B: clamp8(128 + n),
				A: 255,
			})
		}
	}
	for i := 0; i < 3; i++ {
		cx, cy := rng.IntN(b.Dx()), rng.IntN(b.Dy())
		r := 10 + rng.IntN(20)
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy > r*r || !image.Pt(x, y).In(b) {
					continue
				}
				c := img.RGBAAt(x, y)
				c.R, c.G, c.B = c.R-40, c.G-40, c.B-30
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawAnimal paints a gray-brown ellipse with radii rx, ry.
func drawAnimal(img *image.RGBA, cx, cy, rx, ry int, rng *rand.Rand) {
	base := 90 + rng.IntN(40)
	for y := cy - ry; y <= cy+ry; y++ {
		for x := cx - rx; x <= cx+rx; x++ {
			fx := float64(x-cx) / float64(rx)
			fy := float64(y-cy) / float64(ry)
			if fx*fx+fy*fy > 1 || !image.Pt(x, y).In(img.Rect) {
				continue
			}
			n := base + rng.IntN(11) - 5
			img.SetRGBA(x, y, color.RGBA{R: clamp8(n + 10), G: clamp8(n), B: clamp8(n - 10), A: 255})
		}
	}
}

func fillDisk(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Rect) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func clamp8(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
