package analyzer

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drawDot paints a filled disk of the given radius.
func drawDot(img *image.Gray, cx, cy, radius int, v uint8) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius && image.Pt(x, y).In(img.Rect) {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
}

func TestLoGDetectorFindsDots(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 120))
	centers := []image.Point{{30, 20}, {150, 25}, {60, 90}, {120, 100}}
	for _, c := range centers {
		drawDot(img, c.X, c.Y, 4, 255)
	}

	blobs, err := NewLoGDetector().Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, blobs, len(centers))

	// результат отсортирован сверху вниз, слева направо
	want := []image.Point{{30, 20}, {150, 25}, {60, 90}, {120, 100}}
	for i, b := range blobs {
		assert.InDelta(t, want[i].X, b.X, 1, "blob %d", i)
		assert.InDelta(t, want[i].Y, b.Y, 1, "blob %d", i)
		assert.Equal(t, 3.0, b.Sigma)
	}
}

func TestLoGDetectorIgnoresFaintDots(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 80, 80))
	drawDot(img, 40, 40, 4, 1)

	blobs, err := NewLoGDetector().Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestLoGDetectorMergesTouchingDots(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 80, 80))
	drawDot(img, 40, 40, 4, 255)
	drawDot(img, 42, 40, 4, 255)

	blobs, err := NewLoGDetector().Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
}

func TestLoGDetectorDotAtBorder(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 60, 60))
	drawDot(img, 2, 30, 4, 255)

	blobs, err := NewLoGDetector().Detect(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, blobs)
	assert.LessOrEqual(t, blobs[0].X, 4)
}

func TestLoGDetectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoGDetector().Detect(ctx, image.NewGray(image.Rect(0, 0, 64, 64)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSigmas(t *testing.T) {
	d := NewLoGDetector()
	assert.Equal(t, []float64{3}, d.Sigmas())

	d.NumSigma = 3
	assert.Equal(t, []float64{3, 3.5, 4}, d.Sigmas())
}

func TestGaussianKernel(t *testing.T) {
	g0 := gaussianKernel(3, 0)
	g2 := gaussianKernel(3, 2)
	require.Len(t, g0, 25)
	require.Len(t, g2, 25)

	var s0, s2 float64
	for i := range g0 {
		s0 += float64(g0[i])
		s2 += float64(g2[i])
	}
	assert.InDelta(t, 1, s0, 1e-5)
	assert.InDelta(t, 0, s2, 1e-3)
	// вторая производная отрицательна в центре
	assert.Less(t, g2[12], float32(0))
}

func TestReflect(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 0}, {-2, 5, 1}, {5, 5, 4}, {6, 5, 3}, {2, 5, 2}, {-3, 1, 0}, {12, 5, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reflect(tt.i, tt.n), "reflect(%d, %d)", tt.i, tt.n)
	}
}

func TestDiskOverlap(t *testing.T) {
	a := peak{x: 0, y: 0, sigma: 3}
	assert.Equal(t, 1.0, diskOverlap(a, peak{x: 0, y: 0, sigma: 3}))
	assert.Equal(t, 0.0, diskOverlap(a, peak{x: 20, y: 0, sigma: 3}))

	half := diskOverlap(a, peak{x: 3, y: 0, sigma: 3})
	assert.Greater(t, half, 0.5)
	assert.Less(t, half, 1.0)

	far := diskOverlap(a, peak{x: 6, y: 0, sigma: 3})
	assert.Greater(t, far, 0.0)
	assert.Less(t, far, 0.5)
	assert.False(t, math.IsNaN(far))
}

func TestPruneKeepsLargerScale(t *testing.T) {
	peaks := []peak{
		{x: 10, y: 10, s: 0, sigma: 3, value: 0.9},
		{x: 10, y: 10, s: 1, sigma: 4, value: 0.5},
		{x: 50, y: 50, s: 0, sigma: 3, value: 0.3},
	}
	blobs := prune(peaks, 0.5, 4)
	require.Len(t, blobs, 2)
	assert.Contains(t, blobs, Blob{X: 10, Y: 10, Sigma: 4})
	assert.Contains(t, blobs, Blob{X: 50, Y: 50, Sigma: 3})
}

func TestPruneEqualScalesDropsFirst(t *testing.T) {
	peaks := []peak{
		{x: 10, y: 10, sigma: 3, value: 1.0},
		{x: 12, y: 10, sigma: 3, value: 0.5},
	}
	blobs := prune(peaks, 0.5, 3)
	assert.Equal(t, []Blob{{X: 12, Y: 10, Sigma: 3}}, blobs)
}

func TestPruneEqualScalesKeepsDistantBlobs(t *testing.T) {
	peaks := []peak{
		{x: 10, y: 10, sigma: 3, value: 1.0},
		{x: 40, y: 10, sigma: 3, value: 0.5},
	}
	assert.Len(t, prune(peaks, 0.5, 3), 2)
}

func TestPrepareMasksBlackedOutRegions(t *testing.T) {
	rect := image.Rect(0, 0, 10, 10)
	train := image.NewRGBA(rect)
	dotted := image.NewRGBA(rect)
	for i := 0; i < len(train.Pix); i += 4 {
		copy(train.Pix[i:i+4], []uint8{100, 100, 100, 255})
		copy(dotted.Pix[i:i+4], []uint8{100, 100, 100, 255})
	}
	// dot in a visible area
	dotted.SetRGBA(2, 2, color.RGBA{R: 250, A: 255})
	// dot over a region blacked out in the dotted copy
	dotted.SetRGBA(7, 7, color.RGBA{A: 255})

	gray := Prepare(train, dotted, 20)
	assert.NotZero(t, gray.GrayAt(2, 2).Y)
	assert.Zero(t, gray.GrayAt(7, 7).Y)
	assert.Zero(t, gray.GrayAt(5, 5).Y)
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(0), luma(0, 0, 0))
	assert.Equal(t, uint8(255), luma(255, 255, 255))
	assert.Equal(t, uint8(76), luma(255, 0, 0))
	assert.Equal(t, uint8(150), luma(0, 255, 0))
	assert.Equal(t, uint8(29), luma(0, 0, 255))
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"log", false},
		{"", false}, // default
		{"dog", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant, Params{Workers: 2})

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, detector)
		})
	}
}

func TestDetectorRegistryParams(t *testing.T) {
	d, err := NewDetector("log", Params{MaxSigma: 6, NumSigma: 3, Threshold: 0.1})
	require.NoError(t, err)

	log, ok := d.(*LoGDetector)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4.5, 6}, log.Sigmas())
	assert.Equal(t, 0.1, log.Threshold)
	assert.Equal(t, 0.5, log.Overlap)
}
