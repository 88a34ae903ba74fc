package source

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/sealions/internal/synth"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
}

func TestListImagesOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "10.jpg", "2.jpg", "1.JPG", "b.png", "a.png", "notes.txt", "3.tiff", "x12.bmp")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "4.jpg"), 0755))

	names, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.JPG", "2.jpg", "3.tiff", "10.jpg", "a.png", "b.png", "x12.bmp"}, names)
}

func TestListImagesMissingDir(t *testing.T) {
	_, err := ListImages(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNumericKey(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"41.jpg", 41, true},
		{"0.png", 0, true},
		{"7a.jpg", 0, false},
		{"abc.jpg", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := numericKey(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()
	scene, err := synth.Generate(synth.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, scene.WritePair(dir, "5.png"))
	require.NoError(t, scene.WritePair(dir, "12.png"))

	src, err := NewPairSource(dir, "Train", "TrainDotted")
	require.NoError(t, err)

	name, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, "5.png", name)

	pair, err := src.Load(context.Background(), name)
	require.NoError(t, err)
	defer pair.Release()

	assert.Equal(t, "5.png", pair.Name)
	assert.Equal(t, scene.Train.Pix, pair.Train.Pix)
	assert.Equal(t, scene.Dotted.Pix, pair.Dotted.Pix)
}

func TestLoadPairMismatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Train"))
	touch(t, filepath.Join(dir, "TrainDotted"))

	write := func(sub string, w, h int) {
		f, err := os.Create(filepath.Join(dir, sub, "0.png"))
		require.NoError(t, err)
		defer f.Close()
		require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	}
	write("Train", 40, 30)
	write("TrainDotted", 30, 40)

	src, err := NewPairSource(dir, "Train", "TrainDotted")
	require.NoError(t, err)
	_, err = src.Load(context.Background(), "0.png")
	assert.ErrorIs(t, err, ErrPairMismatch)
}

func TestLoadPairMissingFile(t *testing.T) {
	dir := t.TempDir()
	scene, err := synth.Generate(synth.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, scene.WritePair(dir, "1.png"))
	require.NoError(t, os.Remove(filepath.Join(dir, "TrainDotted", "1.png")))

	src, err := NewPairSource(dir, "Train", "TrainDotted")
	require.NoError(t, err)
	_, err = src.Load(context.Background(), "1.png")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPairCancelled(t *testing.T) {
	dir := t.TempDir()
	scene, err := synth.Generate(synth.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, scene.WritePair(dir, "0.png"))

	src, err := NewPairSource(dir, "Train", "TrainDotted")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, "0.png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPairSourceErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewPairSource(dir, "Train", "TrainDotted")
	assert.Error(t, err)

	touch(t, filepath.Join(dir, "Train"))
	touch(t, dir, "TrainDotted")
	_, err = NewPairSource(dir, "Train", "TrainDotted")
	assert.Error(t, err)

	src, err := NewPairSource(dir, "Train", "Train")
	require.NoError(t, err)
	_, err = src.First()
	assert.Error(t, err)
}
