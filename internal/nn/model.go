package nn

import (
	"fmt"
	"math/rand/v2"
)

// Model is a stack of layers applied to one sample at a time.
type Model struct {
	layers []Layer
	shapes []Shape // shapes[0] is the input, shapes[i+1] the output of layers[i]
}

// NewSequential builds the layers for the given input shape. Weights are drawn from a
// generator seeded with seed.
func NewSequential(input Shape, seed int64, layers ...Layer) (*Model, error) {
	if input.Size() <= 0 {
		return nil, fmt.Errorf("invalid input shape %v", input)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	m := &Model{layers: layers, shapes: []Shape{input}}
	in := input
	for i, l := range layers {
		out, err := l.build(in, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		m.shapes = append(m.shapes, out)
		in = out
	}
	return m, nil
}

// NewClassifier returns the patch classifier: two conv/pool stages and a dropout-regularized
// dense head with one softmax output per class.
func NewClassifier(input Shape, classes int, dropout float64, seed int64) (*Model, error) {
	if classes < 1 {
		return nil, fmt.Errorf("classifier needs at least one class")
	}
	return NewSequential(input, seed,
		&Rescale{Scale: 1.0 / 255, Offset: -0.5},
		&Conv2D{Filters: 32, Kernel: 5, Activation: ReLU},
		&MaxPool2D{Size: 2},
		&Conv2D{Filters: 64, Kernel: 5, Activation: ReLU},
		&Flatten{},
		&Dense{Units: 512, Activation: ReLU},
		&Dropout{Rate: float32(dropout)},
		&Dense{Units: classes, Activation: Softmax},
	)
}

func (m *Model) Input() Shape  { return m.shapes[0] }
func (m *Model) Output() Shape { return m.shapes[len(m.shapes)-1] }

// Params returns every trainable tensor in layer order.
func (m *Model) Params() []*Param {
	var out []*Param
	for _, l := range m.layers {
		out = append(out, l.params()...)
	}
	return out
}

type LayerInfo struct {
	Name   string
	Output Shape
	Params int
}

func (m *Model) Summary() []LayerInfo {
	info := make([]LayerInfo, len(m.layers))
	for i, l := range m.layers {
		n := 0
		for _, p := range l.params() {
			n += len(p.Value)
		}
		info[i] = LayerInfo{Name: l.Name(), Output: m.shapes[i+1], Params: n}
	}
	return info
}

// ParamCount is the total number of trainable values.
func (m *Model) ParamCount() int {
	n := 0
	for _, p := range m.Params() {
		n += len(p.Value)
	}
	return n
}

// Predict returns class probabilities for one sample.
func (m *Model) Predict(x []float32) ([]float32, error) {
	if len(x) != m.Input().Size() {
		return nil, fmt.Errorf("sample has %d values, model expects %d", len(x), m.Input().Size())
	}
	ws := m.newWorkspace(false)
	out := m.forward(ws, x, false)
	return append([]float32(nil), out...), nil
}

// workspace holds the per-goroutine buffers of one forward/backward pass.
type workspace struct {
	acts   [][]float32
	deltas [][]float32
	aux    [][]int32
	grads  [][][]float32 // per layer, per param
	flat   [][]float32   // grads in Params() order
	pcg    *rand.PCG
	rng    *rand.Rand
}

func (m *Model) newWorkspace(train bool) *workspace {
	n := len(m.layers)
	ws := &workspace{
		acts: make([][]float32, n+1),
		aux:  make([][]int32, n),
	}
	for i := 1; i <= n; i++ {
		ws.acts[i] = make([]float32, m.shapes[i].Size())
		ws.aux[i-1] = make([]int32, m.shapes[i].Size())
	}
	ws.pcg = rand.NewPCG(0, 0)
	ws.rng = rand.New(ws.pcg)

	if !train {
		return ws
	}
	ws.deltas = make([][]float32, n+1)
	for i := 1; i <= n; i++ {
		ws.deltas[i] = make([]float32, m.shapes[i].Size())
	}
	ws.grads = make([][][]float32, n)
	for i, l := range m.layers {
		for _, p := range l.params() {
			g := make([]float32, len(p.Value))
			ws.grads[i] = append(ws.grads[i], g)
			ws.flat = append(ws.flat, g)
		}
	}
	return ws
}

func (ws *workspace) zeroGrads() {
	for _, g := range ws.flat {
		clear(g)
	}
}

func (m *Model) forward(ws *workspace, x []float32, train bool) []float32 {
	ws.acts[0] = x
	for i, l := range m.layers {
		l.forward(ws.acts[i], ws.acts[i+1], ws.aux[i], train, ws.rng)
	}
	return ws.acts[len(m.layers)]
}

// backward propagates the gradient stored in the last delta buffer and accumulates
// parameter gradients into ws.grads.
func (m *Model) backward(ws *workspace) {
	for i := len(m.layers) - 1; i >= 0; i-- {
		var dIn []float32
		if i > 0 {
			dIn = ws.deltas[i]
			clear(dIn)
		}
		m.layers[i].backward(ws.acts[i], ws.acts[i+1], ws.deltas[i+1], ws.aux[i], ws.grads[i], dIn)
	}
}

// outputDelta is where the loss writes its gradient before backward.
func (m *Model) outputDelta(ws *workspace) []float32 {
	return ws.deltas[len(m.layers)]
}
