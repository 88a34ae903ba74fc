package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPixels(img *image.RGBA, match func(c color.RGBA) bool) int {
	n := 0
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if match(img.RGBAAt(x, y)) {
				n++
			}
		}
	}
	return n
}

func bluish(c color.RGBA) bool  { return int(c.B) > int(c.R)+50 }
func orangish(c color.RGBA) bool { return int(c.R) > int(c.B)+80 }

func TestLineChartRender(t *testing.T) {
	chart := &LineChart{
		Title:  "model accuracy",
		XLabel: "epoch",
		YLabel: "accuracy",
		Series: []Series{
			{Name: "train", Values: []float64{0.3, 0.5, 0.7, 0.8, 0.85}, Color: Blue},
			{Name: "test", Values: []float64{0.25, 0.45, 0.6, 0.62, 0.64}, Color: Orange},
		},
	}
	img, err := chart.Render()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Rect)

	assert.Greater(t, countPixels(img, bluish), 200)
	assert.Greater(t, countPixels(img, orangish), 200)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(630, 5))
}

func TestLineChartSingleConstantSeries(t *testing.T) {
	chart := &LineChart{Series: []Series{{Name: "loss", Values: []float64{0.5}, Color: Blue}}, Width: 320, Height: 240}
	img, err := chart.Render()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), img.Rect)
	assert.Positive(t, countPixels(img, bluish))
}

func TestLineChartErrors(t *testing.T) {
	_, err := (&LineChart{}).Render()
	assert.ErrorIs(t, err, ErrNoData)

	_, err = (&LineChart{Series: []Series{{Values: []float64{1}}}, Width: 80, Height: 80}).Render()
	assert.Error(t, err)
}

func TestNiceStep(t *testing.T) {
	tests := []struct{ span, want float64 }{
		{1, 0.2},
		{19, 5},
		{0.6, 0.2},
		{100, 20},
		{3, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, niceStep(tt.span, 5), 1e-12, "span %g", tt.span)
	}
}

func TestAxis(t *testing.T) {
	a := newAxis(0.23, 0.87, 5, false)
	assert.InDelta(t, 0.2, a.lo, 1e-12)
	assert.InDelta(t, 1.0, a.hi, 1e-12)
	assert.Len(t, a.ticks(), 5)
	assert.Equal(t, "0.4", a.format(0.4))
	assert.InDelta(t, 100, a.pos(0.6, 0, 200), 1e-9)

	x := newAxis(0, 1, 5, true)
	assert.Equal(t, []float64{0, 1}, x.ticks())
	assert.Equal(t, "1", x.format(1))

	flat := newAxis(2, 2, 5, false)
	assert.Less(t, flat.lo, 2.0)
	assert.Greater(t, flat.hi, 2.0)
}

func TestExampleSheet(t *testing.T) {
	red := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(red.Pix); i += 4 {
		copy(red.Pix[i:i+4], []uint8{200, 0, 0, 255})
	}
	green := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(green.Pix); i += 4 {
		copy(green.Pix[i:i+4], []uint8{0, 200, 0, 255})
	}

	rows := []SheetRow{
		{Title: "adult_males", Images: []*image.RGBA{red, red, red}},
		{Title: "pups", Images: []*image.RGBA{green}},
	}
	img, err := ExampleSheet(rows, 2, 3)
	require.NoError(t, err)

	cell := 12
	assert.Equal(t, sheetGap+2*(cell+sheetGap), img.Rect.Dx())
	assert.Equal(t, sheetGap+2*(sheetTitleH+cell+sheetGap), img.Rect.Dy())

	p := SheetOrigin(0, 1, cell)
	assert.Equal(t, color.RGBA{R: 200, A: 255}, img.RGBAAt(p.X+11, p.Y+11))
	p = SheetOrigin(1, 0, cell)
	assert.Equal(t, color.RGBA{G: 200, A: 255}, img.RGBAAt(p.X, p.Y))
	p = SheetOrigin(1, 1, cell)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(p.X+5, p.Y+5))
}

func TestExampleSheetEmpty(t *testing.T) {
	_, err := ExampleSheet([]SheetRow{{Title: "pups"}}, 10, 2)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	img, err := (&LineChart{Series: []Series{{Name: "loss", Values: []float64{1, 0.5}, Color: Orange}}}).Render()
	require.NoError(t, err)
	require.NoError(t, WritePNG(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}
