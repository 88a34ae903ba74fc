package renderer

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// drawText draws s with its baseline at y.
func drawText(img draw.Image, s string, x, y int, col color.Color) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawTextVertical draws s rotated a quarter turn counterclockwise, its left edge at x and
// centered on cy.
func drawTextVertical(img *image.RGBA, s string, x, cy int, col color.Color) {
	if s == "" {
		return
	}
	tw, th := textWidth(s), face.Height
	tmp := image.NewRGBA(image.Rect(0, 0, tw, th))
	drawText(tmp, s, 0, face.Ascent, col)

	for py := 0; py < th; py++ {
		for px := 0; px < tw; px++ {
			c := tmp.RGBAAt(px, py)
			if c.A == 0 {
				continue
			}
			p := image.Pt(x+py, cy+tw/2-px)
			if p.In(img.Rect) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}
