package labels

import (
	"fmt"
	"image/color"
)

// Class is an animal category marked by a dot color on the annotated photographs.
type Class string

const (
	AdultMale    Class = "adult_males"
	SubadultMale Class = "subadult_males"
	AdultFemale  Class = "adult_females"
	Juvenile     Class = "juveniles"
	Pup          Class = "pups"
)

// All lists the classes in the order patches are collected.
var All = []Class{AdultMale, SubadultMale, AdultFemale, Juvenile, Pup}

// Parse validates a class name.
func Parse(s string) (Class, error) {
	for _, c := range All {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown class %q", s)
}

// Classify maps the dot color under a blob center to a class. The first matching rule
// wins; colors matching no rule are not annotation dots.
func Classify(c color.RGBA) (Class, bool) {
	r, g, b := c.R, c.G, c.B
	switch {
	case r > 200 && g < 50 && b < 50: // red
		return AdultMale, true
	case r > 200 && b > 200 && g < 50: // magenta
		return SubadultMale, true
	case r < 100 && b < 100 && g > 150 && g < 200: // green
		return Pup, true
	case r < 100 && b > 100 && g < 100: // blue
		return Juvenile, true
	case r < 150 && g < 100 && b < 50: // brown
		return AdultFemale, true
	}
	return "", false
}

// DotColor is a representative annotation color for each class.
func DotColor(c Class) color.RGBA {
	switch c {
	case AdultMale:
		return color.RGBA{R: 243, G: 8, B: 5, A: 255}
	case SubadultMale:
		return color.RGBA{R: 244, G: 8, B: 242, A: 255}
	case AdultFemale:
		return color.RGBA{R: 87, G: 46, B: 10, A: 255}
	case Juvenile:
		return color.RGBA{R: 25, G: 56, B: 176, A: 255}
	case Pup:
		return color.RGBA{R: 38, G: 174, B: 21, A: 255}
	}
	return color.RGBA{A: 255}
}
