package renderer

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// SheetRow is one titled strip of example images.
type SheetRow struct {
	Title  string
	Images []*image.RGBA
}

const (
	sheetGap    = 4
	sheetTitleH = 18
)

// ExampleSheet lays rows out top to bottom with at most perRow images each, enlarged
// scale times with nearest-neighbor sampling.
func ExampleSheet(rows []SheetRow, perRow, scale int) (*image.RGBA, error) {
	perRow, scale = max(perRow, 1), max(scale, 1)

	cell := 0
	for _, row := range rows {
		for _, p := range row.Images {
			cell = max(cell, p.Rect.Dx(), p.Rect.Dy())
		}
	}
	if cell == 0 {
		return nil, ErrNoData
	}
	cell *= scale

	rowH := sheetTitleH + cell + sheetGap
	img := image.NewRGBA(image.Rect(0, 0, sheetGap+perRow*(cell+sheetGap), sheetGap+len(rows)*rowH))
	draw.Draw(img, img.Rect, image.White, image.Point{}, draw.Src)

	for i, row := range rows {
		y0 := sheetGap + i*rowH
		drawText(img, row.Title, sheetGap, y0+13, color.Black)
		for j, p := range row.Images[:min(len(row.Images), perRow)] {
			x0 := sheetGap + j*(cell+sheetGap)
			dst := image.Rect(0, 0, p.Rect.Dx()*scale, p.Rect.Dy()*scale).Add(image.Pt(x0, y0+sheetTitleH))
			draw.NearestNeighbor.Scale(img, dst, p, p.Rect, draw.Src, nil)
		}
	}
	return img, nil
}

// SheetOrigin returns the top-left pixel of image col in row on a sheet built with the
// same cell size.
func SheetOrigin(row, col, cell int) image.Point {
	return image.Pt(sheetGap+col*(cell+sheetGap), sheetGap+row*(sheetTitleH+cell+sheetGap)+sheetTitleH)
}
