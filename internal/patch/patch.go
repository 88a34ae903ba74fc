package patch

import (
	"errors"
	"image"
	"image/draw"

	"github.com/ivlev/sealions/internal/labels"
)

// ErrEmpty is returned when no dot yields a full patch.
var ErrEmpty = errors.New("no patches extracted")

// Dataset holds square crops and their labels in matching order.
type Dataset struct {
	Size    int
	Patches []*image.RGBA
	Labels  []labels.Class
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Patches)
}

// Extract crops a size x size patch around every dot of file listed in the table,
// walking classes in labels.All order. Dots closer than size/2 to an edge are skipped.
func Extract(img *image.RGBA, table *labels.Table, file string, size int) *Dataset {
	ds := &Dataset{Size: size}
	half := size / 2
	for _, c := range labels.All {
		for _, p := range table.Points(file, c) {
			r := image.Rect(p.X-half, p.Y-half, p.X+half, p.Y+half)
			if !r.In(img.Rect) {
				continue
			}
			ds.Patches = append(ds.Patches, crop(img, r))
			ds.Labels = append(ds.Labels, c)
		}
	}
	return ds
}

// crop copies r into a new image anchored at (0, 0), detached from the source buffer.
func crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Rect, img, r.Min, draw.Src)
	return out
}

// Tensor returns sample i as float32 values in HWC order (RGB, 0..255).
func (d *Dataset) Tensor(i int) []float32 {
	p := d.Patches[i]
	w, h := p.Rect.Dx(), p.Rect.Dy()
	out := make([]float32, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := p.Pix[y*p.Stride : y*p.Stride+w*4]
		for x := 0; x < w; x++ {
			out = append(out, float32(row[x*4]), float32(row[x*4+1]), float32(row[x*4+2]))
		}
	}
	return out
}

// Tensors converts all samples.
func (d *Dataset) Tensors() [][]float32 {
	out := make([][]float32, d.Len())
	for i := range out {
		out[i] = d.Tensor(i)
	}
	return out
}

// ByClass returns up to n patches of class c in dataset order.
func (d *Dataset) ByClass(c labels.Class, n int) []*image.RGBA {
	var out []*image.RGBA
	for i, l := range d.Labels {
		if len(out) == n {
			break
		}
		if l == c {
			out = append(out, d.Patches[i])
		}
	}
	return out
}

// Counts returns the number of samples per class.
func (d *Dataset) Counts() map[labels.Class]int {
	counts := make(map[labels.Class]int)
	for _, l := range d.Labels {
		counts[l]++
	}
	return counts
}
