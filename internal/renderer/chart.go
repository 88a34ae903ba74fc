package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

var ErrNoData = errors.New("nothing to draw")

// Colors of the first two series, as matplotlib draws them.
var (
	Blue   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	Orange = color.RGBA{R: 255, G: 127, B: 14, A: 255}

	axisColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	gridColor = color.RGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
)

const (
	marginLeft   = 64
	marginRight  = 16
	marginTop    = 30
	marginBottom = 44
	tickLen      = 4
	lineWidth    = 2
)

type Series struct {
	Name   string
	Values []float64
	Color  color.RGBA
}

// LineChart plots series against their index (epoch).
type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
	Width  int // 640 when zero
	Height int // 480 when zero
}

func (c *LineChart) Render() (*image.RGBA, error) {
	w, h := c.Width, c.Height
	if w == 0 {
		w = 640
	}
	if h == 0 {
		h = 480
	}

	n := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range c.Series {
		n = max(n, len(s.Values))
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if n == 0 || math.IsInf(lo, 1) {
		return nil, ErrNoData
	}

	plot := image.Rect(marginLeft, marginTop, w-marginRight, h-marginBottom)
	if plot.Dx() < 50 || plot.Dy() < 50 {
		return nil, fmt.Errorf("chart %dx%d is too small", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.White, image.Point{}, draw.Src)

	xa := newAxis(0, float64(max(n-1, 1)), 5, true)
	ya := newAxis(lo, hi, 5, false)
	px := func(v float64) float64 { return xa.pos(v, float64(plot.Min.X), float64(plot.Max.X)) }
	py := func(v float64) float64 { return ya.pos(v, float64(plot.Max.Y), float64(plot.Min.Y)) }

	for _, v := range ya.ticks() {
		y := int(math.Round(py(v)))
		hline(img, plot.Min.X, plot.Max.X, y, gridColor)
		hline(img, plot.Min.X-tickLen, plot.Min.X, y, axisColor)
		label := ya.format(v)
		drawText(img, label, plot.Min.X-tickLen-3-textWidth(label), y+4, axisColor)
	}
	for _, v := range xa.ticks() {
		x := int(math.Round(px(v)))
		vline(img, x, plot.Max.Y, plot.Max.Y+tickLen, axisColor)
		label := xa.format(v)
		drawText(img, label, x-textWidth(label)/2, plot.Max.Y+tickLen+13, axisColor)
	}
	frame(img, plot, axisColor)

	for _, s := range c.Series {
		pts := make([]point, 0, len(s.Values))
		for i, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, point{px(float64(i)), py(v)})
		}
		strokePolyline(img, pts, lineWidth, s.Color)
	}

	drawText(img, c.Title, (w-textWidth(c.Title))/2, 18, color.Black)
	drawText(img, c.XLabel, plot.Min.X+(plot.Dx()-textWidth(c.XLabel))/2, h-8, color.Black)
	drawTextVertical(img, c.YLabel, 6, plot.Min.Y+plot.Dy()/2, color.Black)
	c.legend(img, plot)
	return img, nil
}

// legend draws the series names in the upper-left corner of the plot area.
func (c *LineChart) legend(img *image.RGBA, plot image.Rectangle) {
	if len(c.Series) == 0 {
		return
	}
	widest := 0
	for _, s := range c.Series {
		widest = max(widest, textWidth(s.Name))
	}
	box := image.Rect(0, 0, 36+widest, 8+16*len(c.Series)).Add(plot.Min.Add(image.Pt(8, 8)))
	draw.Draw(img, box, image.White, image.Point{}, draw.Src)
	frame(img, box, gridColor)

	for i, s := range c.Series {
		y := box.Min.Y + 12 + 16*i
		x := float64(box.Min.X + 6)
		strokePolyline(img, []point{{x, float64(y)}, {x + 20, float64(y)}}, lineWidth, s.Color)
		drawText(img, s.Name, box.Min.X+32, y+4, color.Black)
	}
}

// axis is a linear scale whose bounds are multiples of step.
type axis struct {
	lo, hi, step float64
}

func newAxis(lo, hi float64, ticks int, integer bool) axis {
	if hi-lo < 1e-12 {
		lo, hi = lo-0.5, hi+0.5
	}
	step := niceStep(hi-lo, ticks)
	if integer {
		step = math.Max(step, 1)
	}
	return axis{
		lo:   math.Floor(lo/step) * step,
		hi:   math.Ceil(hi/step) * step,
		step: step,
	}
}

// niceStep rounds span/ticks up to 1, 2 or 5 times a power of ten.
func niceStep(span float64, ticks int) float64 {
	raw := span / float64(max(ticks, 1))
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f <= 1:
		return mag
	case f <= 2:
		return 2 * mag
	case f <= 5:
		return 5 * mag
	}
	return 10 * mag
}

func (a axis) ticks() []float64 {
	n := int(math.Round((a.hi - a.lo) / a.step))
	out := make([]float64, n+1)
	for i := range out {
		out[i] = a.lo + float64(i)*a.step
	}
	return out
}

// pos maps v into pixel coordinates between from (a.lo) and to (a.hi).
func (a axis) pos(v, from, to float64) float64 {
	return lerp(from, to, (v-a.lo)/(a.hi-a.lo))
}

func (a axis) format(v float64) string {
	decimals := max(0, int(-math.Floor(math.Log10(a.step))))
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

type point struct{ x, y float64 }

// strokePolyline draws an anti-aliased line of the given width through pts. Every segment
// is a quad and every vertex a square, all wound the same way so overlaps do not cancel.
func strokePolyline(img *image.RGBA, pts []point, width float64, col color.Color) {
	if len(pts) == 0 {
		return
	}
	r := vector.NewRasterizer(img.Rect.Dx(), img.Rect.Dy())
	r.DrawOp = draw.Over
	hw := width / 2

	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b.x-a.x, b.y-a.y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		r.MoveTo(float32(a.x+nx), float32(a.y+ny))
		r.LineTo(float32(b.x+nx), float32(b.y+ny))
		r.LineTo(float32(b.x-nx), float32(b.y-ny))
		r.LineTo(float32(a.x-nx), float32(a.y-ny))
		r.ClosePath()
	}
	for _, p := range pts {
		r.MoveTo(float32(p.x-hw), float32(p.y+hw))
		r.LineTo(float32(p.x+hw), float32(p.y+hw))
		r.LineTo(float32(p.x+hw), float32(p.y-hw))
		r.LineTo(float32(p.x-hw), float32(p.y-hw))
		r.ClosePath()
	}
	r.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{})
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	draw.Draw(img, image.Rect(x0, y, x1+1, y+1), image.NewUniform(c), image.Point{}, draw.Src)
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	draw.Draw(img, image.Rect(x, y0, x+1, y1+1), image.NewUniform(c), image.Point{}, draw.Src)
}

func frame(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	hline(img, r.Min.X, r.Max.X, r.Min.Y, c)
	hline(img, r.Min.X, r.Max.X, r.Max.Y, c)
	vline(img, r.Min.X, r.Min.Y, r.Max.Y, c)
	vline(img, r.Max.X, r.Min.Y, r.Max.Y, c)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
