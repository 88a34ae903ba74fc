package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Shape is the per-sample layout of a tensor in HWC order. Flat tensors use H = W = 1.
type Shape struct {
	H, W, C int
}

func (s Shape) Size() int {
	return s.H * s.W * s.C
}

func (s Shape) String() string {
	if s.H == 1 && s.W == 1 {
		return fmt.Sprintf("(%d)", s.C)
	}
	return fmt.Sprintf("(%d, %d, %d)", s.H, s.W, s.C)
}

// Param is a trainable tensor with its Adam moments.
type Param struct {
	Name  string
	Value []float32
	m, v  []float32
}

func newParam(name string, n int) *Param {
	return &Param{Name: name, Value: make([]float32, n)}
}

// glorotUniform fills w from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(w []float32, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}

// Activation is applied in place to a layer output.
type Activation int

const (
	Linear Activation = iota
	ReLU
	// Softmax expects the incoming gradient to be taken with respect to the logits,
	// as CrossEntropy produces it.
	Softmax
)

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Softmax:
		return "softmax"
	}
	return "linear"
}

func (a Activation) apply(v []float32) {
	switch a {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Softmax:
		softmax(v)
	}
}

// derive multiplies d by the activation derivative evaluated at the output out.
func (a Activation) derive(out, d []float32) {
	if a != ReLU {
		return
	}
	for i, y := range out {
		if y <= 0 {
			d[i] = 0
		}
	}
}

func softmax(v []float32) {
	peak := v[0]
	for _, x := range v[1:] {
		if x > peak {
			peak = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - peak))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}

func argmax(v []float32) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
