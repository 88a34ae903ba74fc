package patch

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/sealions/internal/labels"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestExtract(t *testing.T) {
	img := gradient(100, 80)
	table := labels.NewTable()
	table.Add("0.jpg", labels.Pup, labels.Point{X: 50, Y: 40})
	// touches the corner, kept
	table.Add("0.jpg", labels.AdultMale, labels.Point{X: 16, Y: 16})
	// off the left edge
	table.Add("0.jpg", labels.AdultMale, labels.Point{X: 15, Y: 40})
	// ends exactly at the edge, kept
	table.Add("0.jpg", labels.Juvenile, labels.Point{X: 84, Y: 64})
	// off the right edge
	table.Add("0.jpg", labels.Juvenile, labels.Point{X: 85, Y: 40})

	ds := Extract(img, table, "0.jpg", 32)
	require.Equal(t, 3, ds.Len())
	// порядок классов: adult_males, ..., juveniles, pups
	assert.Equal(t, []labels.Class{labels.AdultMale, labels.Juvenile, labels.Pup}, ds.Labels)

	pup := ds.Patches[2]
	assert.Equal(t, image.Rect(0, 0, 32, 32), pup.Rect)
	assert.Equal(t, color.RGBA{R: 34, G: 24, B: 7, A: 255}, pup.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 65, G: 55, B: 7, A: 255}, pup.RGBAAt(31, 31))
}

func TestExtractDetached(t *testing.T) {
	img := gradient(64, 64)
	table := labels.NewTable()
	table.Add("x", labels.Pup, labels.Point{X: 32, Y: 32})

	ds := Extract(img, table, "x", 32)
	require.Equal(t, 1, ds.Len())

	img.SetRGBA(16, 16, color.RGBA{R: 255, A: 255})
	assert.Equal(t, uint8(16), ds.Patches[0].RGBAAt(0, 0).R)
}

func TestTensor(t *testing.T) {
	img := gradient(8, 8)
	table := labels.NewTable()
	table.Add("x", labels.Pup, labels.Point{X: 4, Y: 4})

	ds := Extract(img, table, "x", 4)
	require.Equal(t, 1, ds.Len())

	x := ds.Tensor(0)
	require.Len(t, x, 4*4*3)
	assert.Equal(t, []float32{2, 2, 7}, x[:3])
	// вторая строка, первый пиксель
	assert.Equal(t, []float32{2, 3, 7}, x[12:15])
	assert.Len(t, ds.Tensors(), 1)
}

func TestByClass(t *testing.T) {
	img := gradient(200, 200)
	table := labels.NewTable()
	for i := 0; i < 5; i++ {
		table.Add("x", labels.Pup, labels.Point{X: 20 + i*30, Y: 50})
	}
	table.Add("x", labels.AdultFemale, labels.Point{X: 100, Y: 100})

	ds := Extract(img, table, "x", 32)
	assert.Len(t, ds.ByClass(labels.Pup, 3), 3)
	assert.Len(t, ds.ByClass(labels.AdultFemale, 10), 1)
	assert.Empty(t, ds.ByClass(labels.Juvenile, 10))
	assert.Equal(t, 5, ds.Counts()[labels.Pup])
}
