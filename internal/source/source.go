package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/sealions/internal/system"
)

// ErrPairMismatch is returned when the plain and dotted images differ in size.
var ErrPairMismatch = errors.New("train and dotted images differ in size")

// Pair is one photograph and its hand-annotated copy.
type Pair struct {
	Name   string
	Train  *image.RGBA
	Dotted *image.RGBA
}

// Release returns both buffers to the shared image pool.
func (p *Pair) Release() {
	system.PutImage(p.Train)
	system.PutImage(p.Dotted)
	p.Train, p.Dotted = nil, nil
}

// PairSource reads Train/<name> and TrainDotted/<name> under a common input directory.
type PairSource struct {
	TrainDir  string
	DottedDir string
}

func NewPairSource(inputDir, trainDir, dottedDir string) (*PairSource, error) {
	s := &PairSource{
		TrainDir:  filepath.Join(inputDir, trainDir),
		DottedDir: filepath.Join(inputDir, dottedDir),
	}
	for _, dir := range []string{s.TrainDir, s.DottedDir} {
		fi, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
	}
	return s, nil
}

// First returns the first file name of the Train directory in listing order.
func (s *PairSource) First() (string, error) {
	names, err := ListImages(s.TrainDir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no images in %s", s.TrainDir)
	}
	return names[0], nil
}

// Load decodes both images of a pair concurrently. Cancellation is checked before each
// decode starts.
func (s *PairSource) Load(ctx context.Context, name string) (*Pair, error) {
	pair := &Pair{Name: name}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := decodeRGBA(filepath.Join(s.TrainDir, name))
		pair.Train = img
		return err
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := decodeRGBA(filepath.Join(s.DottedDir, name))
		pair.Dotted = img
		return err
	})
	if err := g.Wait(); err != nil {
		pair.Release()
		return nil, err
	}

	if pair.Train.Rect != pair.Dotted.Rect {
		err := fmt.Errorf("%s: %w (%v vs %v)", name, ErrPairMismatch, pair.Train.Rect, pair.Dotted.Rect)
		pair.Release()
		return nil, err
	}
	return pair, nil
}

// decodeRGBA decodes an image file into a pooled RGBA buffer anchored at (0, 0).
func decodeRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	rgba := system.GetImage(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba, nil
}
