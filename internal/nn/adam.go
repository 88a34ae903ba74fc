package nn

import "math"

type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
}

func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step applies one update. grads[i] belongs to params[i].
func (a *Adam) Step(params []*Param, grads [][]float32) {
	a.t++
	t := float64(a.t)
	lr := float32(a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t)))
	b1, b2 := float32(a.Beta1), float32(a.Beta2)
	eps := float32(a.Epsilon)

	for i, p := range params {
		if p.m == nil {
			p.m = make([]float32, len(p.Value))
			p.v = make([]float32, len(p.Value))
		}
		g := grads[i]
		for j := range p.Value {
			m := b1*p.m[j] + (1-b1)*g[j]
			v := b2*p.v[j] + (1-b2)*g[j]*g[j]
			p.m[j], p.v[j] = m, v
			p.Value[j] -= lr * m / (float32(math.Sqrt(float64(v))) + eps)
		}
	}
}
