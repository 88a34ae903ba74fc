package analyzer

import (
	"context"
	"image"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// LoGDetector finds bright, roughly circular spots with a scale-normalized
// Laplacian of Gaussian.
type LoGDetector struct {
	MinSigma  float64
	MaxSigma  float64
	NumSigma  int
	Threshold float64 // absolute, on the response of an image scaled to [0, 1]
	Overlap   float64 // share of the smaller disk above which one of two blobs is dropped
	Workers   int
}

// NewLoGDetector creates a detector tuned for the annotation dots (radius ~4px).
func NewLoGDetector() *LoGDetector {
	return &LoGDetector{
		MinSigma:  3,
		MaxSigma:  4,
		NumSigma:  1,
		Threshold: 0.02,
		Overlap:   0.5,
		Workers:   runtime.NumCPU(),
	}
}

// Sigmas returns NumSigma scales evenly spaced over [MinSigma, MaxSigma].
func (d *LoGDetector) Sigmas() []float64 {
	if d.NumSigma <= 1 {
		return []float64{d.MinSigma}
	}
	out := make([]float64, d.NumSigma)
	step := (d.MaxSigma - d.MinSigma) / float64(d.NumSigma-1)
	for i := range out {
		out[i] = d.MinSigma + float64(i)*step
	}
	return out
}

// Detect returns blobs sorted top-to-bottom, left-to-right.
func (d *LoGDetector) Detect(ctx context.Context, img *image.Gray) ([]Blob, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, nil
	}

	src := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			src[y*w+x] = float32(v) / 255
		}
	}

	sigmas := d.Sigmas()
	cube := make([][]float32, len(sigmas))
	for i, s := range sigmas {
		resp, err := d.response(ctx, src, w, h, s)
		if err != nil {
			return nil, err
		}
		cube[i] = resp
	}

	peaks := localMaxima(cube, sigmas, w, h, float32(d.Threshold))
	blobs := prune(peaks, d.Overlap, sigmas[len(sigmas)-1])

	sort.Slice(blobs, func(i, j int) bool {
		if blobs[i].Y != blobs[j].Y {
			return blobs[i].Y < blobs[j].Y
		}
		return blobs[i].X < blobs[j].X
	})
	return blobs, nil
}

// response computes -σ²·(Lxx + Lyy) with separable Gaussian derivative kernels.
func (d *LoGDetector) response(ctx context.Context, src []float32, w, h int, sigma float64) ([]float32, error) {
	g0 := gaussianKernel(sigma, 0)
	g2 := gaussianKernel(sigma, 2)

	tmp := make([]float32, w*h)
	lyy := make([]float32, w*h)
	out := make([]float32, w*h)

	if err := d.convolve(ctx, tmp, src, w, h, g0, alongX); err != nil {
		return nil, err
	}
	if err := d.convolve(ctx, lyy, tmp, w, h, g2, alongY); err != nil {
		return nil, err
	}
	if err := d.convolve(ctx, tmp, src, w, h, g2, alongX); err != nil {
		return nil, err
	}
	if err := d.convolve(ctx, out, tmp, w, h, g0, alongY); err != nil {
		return nil, err
	}

	scale := float32(-sigma * sigma)
	for i := range out {
		out[i] = (out[i] + lyy[i]) * scale
	}
	return out, nil
}

type axis int

const (
	alongX axis = iota
	alongY
)

const rowBand = 64

func (d *LoGDetector) convolve(ctx context.Context, dst, src []float32, w, h int, k []float32, ax axis) error {
	r := len(k) / 2

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.Workers, 1))
	for y0 := 0; y0 < h; y0 += rowBand {
		y1 := min(y0+rowBand, h)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for y := y0; y < y1; y++ {
				out := dst[y*w : (y+1)*w]
				if ax == alongX {
					convolveRow(out, src[y*w:(y+1)*w], k, r)
				} else {
					convolveCol(out, src, w, h, y, k, r)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func convolveRow(out, row, k []float32, r int) {
	n := len(row)
	for x := 0; x < n; x++ {
		var acc float32
		if x-r >= 0 && x+r < n {
			win := row[x-r : x+r+1]
			for j, kv := range k {
				acc += kv * win[j]
			}
		} else {
			for j, kv := range k {
				acc += kv * row[reflect(x+j-r, n)]
			}
		}
		out[x] = acc
	}
}

func convolveCol(out, src []float32, w, h, y int, k []float32, r int) {
	clear(out)
	for j, kv := range k {
		sy := reflect(y+j-r, h)
		row := src[sy*w : (sy+1)*w]
		for x, v := range row {
			out[x] += kv * v
		}
	}
}

// reflect maps i into [0, n) mirroring about the pixel edges: (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// gaussianKernel returns a normalized Gaussian (order 0) or its second derivative
// (order 2), truncated at 4σ.
func gaussianKernel(sigma float64, order int) []float32 {
	radius := int(4*sigma + 0.5)
	s2 := sigma * sigma

	phi := make([]float64, 2*radius+1)
	var sum float64
	for i := range phi {
		x := float64(i - radius)
		phi[i] = math.Exp(-0.5 * x * x / s2)
		sum += phi[i]
	}

	k := make([]float32, len(phi))
	for i, p := range phi {
		v := p / sum
		if order == 2 {
			x := float64(i - radius)
			v *= x*x/(s2*s2) - 1/s2
		}
		k[i] = float32(v)
	}
	return k
}

type peak struct {
	x, y, s int
	sigma   float64
	value   float32
}

// localMaxima keeps points above threshold that are not exceeded anywhere in their
// 3x3 spatial and ±1 scale neighborhood. Plateaus yield several peaks.
func localMaxima(cube [][]float32, sigmas []float64, w, h int, threshold float32) []peak {
	var peaks []peak
	for s, plane := range cube {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := plane[y*w+x]
				if v <= threshold {
					continue
				}
				if isMax(cube, w, h, x, y, s, v) {
					peaks = append(peaks, peak{x: x, y: y, s: s, sigma: sigmas[s], value: v})
				}
			}
		}
	}
	return peaks
}

func isMax(cube [][]float32, w, h, x, y, s int, v float32) bool {
	for ss := s - 1; ss <= s+1; ss++ {
		if ss < 0 || ss >= len(cube) {
			continue
		}
		plane := cube[ss]
		for yy := y - 1; yy <= y+1; yy++ {
			if yy < 0 || yy >= h {
				continue
			}
			for xx := x - 1; xx <= x+1; xx++ {
				if xx < 0 || xx >= w {
					continue
				}
				if plane[yy*w+xx] > v {
					return false
				}
			}
		}
	}
	return true
}

// prune drops one blob of every pair whose disks (radius σ√2) overlap by more than
// overlap of the smaller disk: the smaller-scale one, or the first of the pair in
// descending response order on equal scales.
func prune(peaks []peak, overlap, maxSigma float64) []Blob {
	sort.Slice(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if a.value != b.value {
			return a.value > b.value
		}
		if a.y != b.y {
			return a.y < b.y
		}
		if a.x != b.x {
			return a.x < b.x
		}
		return a.s < b.s
	})

	cell := max(int(math.Ceil(2*maxSigma*math.Sqrt2)), 1)
	grid := make(map[image.Point][]int)
	for i, p := range peaks {
		key := image.Point{X: p.x / cell, Y: p.y / cell}
		grid[key] = append(grid[key], i)
	}

	removed := make([]bool, len(peaks))
	for i := range peaks {
		if removed[i] {
			continue
		}
		p := peaks[i]
		cx, cy := p.x/cell, p.y/cell

	neighbors:
		for gy := cy - 1; gy <= cy+1; gy++ {
			for gx := cx - 1; gx <= cx+1; gx++ {
				for _, j := range grid[image.Point{X: gx, Y: gy}] {
					if j <= i || removed[j] {
						continue
					}
					q := peaks[j]
					if diskOverlap(p, q) <= overlap {
						continue
					}
					if q.sigma >= p.sigma {
						removed[i] = true
						break neighbors
					}
					removed[j] = true
				}
			}
		}
	}

	blobs := make([]Blob, 0, len(peaks))
	for i, p := range peaks {
		if !removed[i] {
			blobs = append(blobs, Blob{X: p.x, Y: p.y, Sigma: p.sigma})
		}
	}
	return blobs
}

// diskOverlap returns the intersection area of the two blob disks as a share of the
// smaller disk.
func diskOverlap(a, b peak) float64 {
	r1 := a.sigma * math.Sqrt2
	r2 := b.sigma * math.Sqrt2
	d := math.Hypot(float64(a.x-b.x), float64(a.y-b.y))

	if d > r1+r2 {
		return 0
	}
	if d <= math.Abs(r1-r2) {
		return 1
	}

	ratio1 := clamp((d*d+r1*r1-r2*r2)/(2*d*r1), -1, 1)
	ratio2 := clamp((d*d+r2*r2-r1*r1)/(2*d*r2), -1, 1)
	a1 := r1 * r1 * math.Acos(ratio1)
	a2 := r2 * r2 * math.Acos(ratio2)
	tri := 0.5 * math.Sqrt(math.Abs((-d+r2+r1)*(d-r2+r1)*(d+r2-r1)*(d+r2+r1)))

	area := a1 + a2 - tri
	smaller := math.Min(r1, r2)
	return area / (math.Pi * smaller * smaller)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
