package labels

import (
	"fmt"
	"sort"
)

// Binarizer turns class labels into one-hot rows. Columns follow the sorted class names
// seen by Fit, and there is one column per class even when only two are present.
type Binarizer struct {
	classes []Class
	index   map[Class]int
}

// Fit records the distinct labels.
func (b *Binarizer) Fit(ys []Class) {
	seen := make(map[Class]bool)
	b.classes = b.classes[:0]
	for _, y := range ys {
		if !seen[y] {
			seen[y] = true
			b.classes = append(b.classes, y)
		}
	}
	sort.Slice(b.classes, func(i, j int) bool { return b.classes[i] < b.classes[j] })

	b.index = make(map[Class]int, len(b.classes))
	for i, c := range b.classes {
		b.index[c] = i
	}
}

// Classes returns the column order.
func (b *Binarizer) Classes() []Class {
	return b.classes
}

// Transform encodes labels. Labels unseen by Fit are an error.
func (b *Binarizer) Transform(ys []Class) ([][]float32, error) {
	out := make([][]float32, len(ys))
	for i, y := range ys {
		col, ok := b.index[y]
		if !ok {
			return nil, fmt.Errorf("label %q was not seen by Fit", y)
		}
		row := make([]float32, len(b.classes))
		row[col] = 1
		out[i] = row
	}
	return out, nil
}

// Inverse returns the class of the highest scoring column.
func (b *Binarizer) Inverse(row []float32) Class {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return b.classes[best]
}
