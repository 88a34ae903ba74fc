package analyzer

import "image"

// luma matches the fixed-point BT.601 weights used by common image libraries
// (0.299 R + 0.587 G + 0.114 B, rounded).
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 8192) >> 14)
}

// Grayscale converts an RGBA image to luma.
func Grayscale(img *image.RGBA) *image.Gray {
	b := img.Rect
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):]
		dst := gray.Pix[gray.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			p := src[x*4 : x*4+3 : x*4+3]
			dst[x] = luma(p[0], p[1], p[2])
		}
	}
	return gray
}

// AbsDiff returns the per-channel absolute difference of two images of equal bounds.
func AbsDiff(a, b *image.RGBA) *image.RGBA {
	out := image.NewRGBA(a.Rect)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = absDiff(a.Pix[i], b.Pix[i])
		out.Pix[i+1] = absDiff(a.Pix[i+1], b.Pix[i+1])
		out.Pix[i+2] = absDiff(a.Pix[i+2], b.Pix[i+2])
		out.Pix[i+3] = 0xff
	}
	return out
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// DarkMask marks pixels whose luma is at least threshold. Blacked-out regions of the
// photographs fall below it.
func DarkMask(img *image.RGBA, threshold uint8) *image.Alpha {
	mask := image.NewAlpha(img.Rect)
	gray := Grayscale(img)
	for i, v := range gray.Pix {
		if v >= threshold {
			mask.Pix[i] = 0xff
		}
	}
	return mask
}

// ApplyMasks zeroes, in place, every pixel that any mask leaves out.
func ApplyMasks(img *image.RGBA, masks ...*image.Alpha) {
	for _, m := range masks {
		for i, a := range m.Pix {
			if a == 0 {
				img.Pix[i*4] = 0
				img.Pix[i*4+1] = 0
				img.Pix[i*4+2] = 0
			}
		}
	}
}

// Prepare builds the detection input: the grayscale difference between the plain and the
// dotted photograph, restricted to pixels that are not blacked out in either.
func Prepare(train, dotted *image.RGBA, maskThreshold uint8) *image.Gray {
	diff := AbsDiff(dotted, train)
	ApplyMasks(diff, DarkMask(dotted, maskThreshold), DarkMask(train, maskThreshold))
	return Grayscale(diff)
}
