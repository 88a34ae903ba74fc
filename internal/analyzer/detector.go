package analyzer

import (
	"context"
	"image"
)

// Blob is a detected dot: its center pixel and the scale it responded at.
type Blob struct {
	X, Y  int
	Sigma float64
}

// Point returns the blob center.
func (b Blob) Point() image.Point {
	return image.Point{X: b.X, Y: b.Y}
}

// Detector finds blobs in a grayscale image.
type Detector interface {
	Detect(ctx context.Context, img *image.Gray) ([]Blob, error)
}
