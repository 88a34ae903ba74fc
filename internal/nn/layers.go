package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Layer is one stage of a Sequential model. Implementations work on a single sample;
// buffers are owned by the caller.
type Layer interface {
	Name() string
	build(in Shape, rng *rand.Rand) (Shape, error)
	params() []*Param
	forward(in, out []float32, aux []int32, train bool, rng *rand.Rand)
	// backward adds parameter gradients into grads and, when dIn is non-nil, writes the
	// input gradient into it (dIn arrives zeroed). dOut may be overwritten.
	backward(in, out, dOut []float32, aux []int32, grads [][]float32, dIn []float32)
}

// Rescale maps raw pixel values: x*Scale + Offset.
type Rescale struct {
	Scale, Offset float32
}

func (l *Rescale) Name() string { return "rescale" }

func (l *Rescale) build(in Shape, _ *rand.Rand) (Shape, error) { return in, nil }

func (l *Rescale) params() []*Param { return nil }

func (l *Rescale) forward(in, out []float32, _ []int32, _ bool, _ *rand.Rand) {
	for i, v := range in {
		out[i] = v*l.Scale + l.Offset
	}
}

func (l *Rescale) backward(_, _, dOut []float32, _ []int32, _ [][]float32, dIn []float32) {
	if dIn == nil {
		return
	}
	for i, d := range dOut {
		dIn[i] = d * l.Scale
	}
}

// Conv2D is a stride-1 convolution with "same" zero padding.
type Conv2D struct {
	Filters    int
	Kernel     int
	Activation Activation

	in   Shape
	pad  int
	w, b *Param
}

func (l *Conv2D) Name() string { return "conv2d" }

func (l *Conv2D) build(in Shape, rng *rand.Rand) (Shape, error) {
	if l.Filters < 1 || l.Kernel < 1 {
		return Shape{}, fmt.Errorf("conv2d: filters and kernel must be positive")
	}
	l.in = in
	l.pad = (l.Kernel - 1) / 2
	l.w = newParam("kernel", l.Kernel*l.Kernel*in.C*l.Filters)
	l.b = newParam("bias", l.Filters)
	glorotUniform(l.w.Value, l.Kernel*l.Kernel*in.C, l.Kernel*l.Kernel*l.Filters, rng)
	return Shape{H: in.H, W: in.W, C: l.Filters}, nil
}

func (l *Conv2D) params() []*Param { return []*Param{l.w, l.b} }

// Weights are laid out [ky][kx][c][f].
func (l *Conv2D) forward(in, out []float32, _ []int32, _ bool, _ *rand.Rand) {
	H, W, C, F, K := l.in.H, l.in.W, l.in.C, l.Filters, l.Kernel
	w, b := l.w.Value, l.b.Value

	for oy := 0; oy < H; oy++ {
		for ox := 0; ox < W; ox++ {
			acc := out[(oy*W+ox)*F : (oy*W+ox+1)*F]
			copy(acc, b)
			for ky := 0; ky < K; ky++ {
				iy := oy + ky - l.pad
				if iy < 0 || iy >= H {
					continue
				}
				for kx := 0; kx < K; kx++ {
					ix := ox + kx - l.pad
					if ix < 0 || ix >= W {
						continue
					}
					px := in[(iy*W+ix)*C : (iy*W+ix+1)*C]
					base := (ky*K + kx) * C * F
					for c, v := range px {
						if v == 0 {
							continue
						}
						row := w[base+c*F : base+(c+1)*F]
						for f, wv := range row {
							acc[f] += v * wv
						}
					}
				}
			}
			l.Activation.apply(acc)
		}
	}
}

func (l *Conv2D) backward(in, out, dOut []float32, _ []int32, grads [][]float32, dIn []float32) {
	H, W, C, F, K := l.in.H, l.in.W, l.in.C, l.Filters, l.Kernel
	w := l.w.Value
	gw, gb := grads[0], grads[1]

	l.Activation.derive(out, dOut)

	for oy := 0; oy < H; oy++ {
		for ox := 0; ox < W; ox++ {
			d := dOut[(oy*W+ox)*F : (oy*W+ox+1)*F]
			if allZero(d) {
				continue
			}
			for f, v := range d {
				gb[f] += v
			}
			for ky := 0; ky < K; ky++ {
				iy := oy + ky - l.pad
				if iy < 0 || iy >= H {
					continue
				}
				for kx := 0; kx < K; kx++ {
					ix := ox + kx - l.pad
					if ix < 0 || ix >= W {
						continue
					}
					px := in[(iy*W+ix)*C : (iy*W+ix+1)*C]
					var dpx []float32
					if dIn != nil {
						dpx = dIn[(iy*W+ix)*C : (iy*W+ix+1)*C]
					}
					base := (ky*K + kx) * C * F
					for c, v := range px {
						off := base + c*F
						if v != 0 {
							grow := gw[off : off+F]
							for f, dv := range d {
								grow[f] += v * dv
							}
						}
						if dpx != nil {
							row := w[off : off+F]
							var s float32
							for f, dv := range d {
								s += row[f] * dv
							}
							dpx[c] += s
						}
					}
				}
			}
		}
	}
}

// MaxPool2D takes the maximum over non-overlapping Size x Size windows; trailing rows and
// columns that do not fill a window are dropped.
type MaxPool2D struct {
	Size int

	in, out Shape
}

func (l *MaxPool2D) Name() string { return "max_pooling2d" }

func (l *MaxPool2D) build(in Shape, _ *rand.Rand) (Shape, error) {
	if l.Size < 1 {
		return Shape{}, fmt.Errorf("max_pooling2d: size must be positive")
	}
	l.in = in
	l.out = Shape{H: in.H / l.Size, W: in.W / l.Size, C: in.C}
	if l.out.H == 0 || l.out.W == 0 {
		return Shape{}, fmt.Errorf("max_pooling2d: input %v smaller than window %d", in, l.Size)
	}
	return l.out, nil
}

func (l *MaxPool2D) params() []*Param { return nil }

// aux records the input index of every selected maximum.
func (l *MaxPool2D) forward(in, out []float32, aux []int32, _ bool, _ *rand.Rand) {
	S, W, C := l.Size, l.in.W, l.in.C
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			for c := 0; c < C; c++ {
				best := float32(math.Inf(-1))
				bestIdx := 0
				for py := 0; py < S; py++ {
					for px := 0; px < S; px++ {
						i := ((oy*S+py)*W+ox*S+px)*C + c
						if in[i] > best {
							best = in[i]
							bestIdx = i
						}
					}
				}
				o := (oy*l.out.W+ox)*C + c
				out[o] = best
				aux[o] = int32(bestIdx)
			}
		}
	}
}

func (l *MaxPool2D) backward(_, _, dOut []float32, aux []int32, _ [][]float32, dIn []float32) {
	if dIn == nil {
		return
	}
	for o, d := range dOut {
		dIn[aux[o]] += d
	}
}

// Flatten turns an HWC tensor into a vector. The memory order is unchanged.
type Flatten struct{}

func (l *Flatten) Name() string { return "flatten" }

func (l *Flatten) build(in Shape, _ *rand.Rand) (Shape, error) {
	return Shape{H: 1, W: 1, C: in.Size()}, nil
}

func (l *Flatten) params() []*Param { return nil }

func (l *Flatten) forward(in, out []float32, _ []int32, _ bool, _ *rand.Rand) {
	copy(out, in)
}

func (l *Flatten) backward(_, _, dOut []float32, _ []int32, _ [][]float32, dIn []float32) {
	if dIn != nil {
		copy(dIn, dOut)
	}
}

// Dense is a fully connected layer.
type Dense struct {
	Units      int
	Activation Activation

	n    int
	w, b *Param
}

func (l *Dense) Name() string { return "dense" }

func (l *Dense) build(in Shape, rng *rand.Rand) (Shape, error) {
	if l.Units < 1 {
		return Shape{}, fmt.Errorf("dense: units must be positive")
	}
	l.n = in.Size()
	l.w = newParam("kernel", l.n*l.Units)
	l.b = newParam("bias", l.Units)
	glorotUniform(l.w.Value, l.n, l.Units, rng)
	return Shape{H: 1, W: 1, C: l.Units}, nil
}

func (l *Dense) params() []*Param { return []*Param{l.w, l.b} }

// Weights are laid out [input][unit].
func (l *Dense) forward(in, out []float32, _ []int32, _ bool, _ *rand.Rand) {
	U := l.Units
	w := l.w.Value
	copy(out, l.b.Value)
	for i, v := range in {
		if v == 0 {
			continue
		}
		row := w[i*U : (i+1)*U]
		for j, wv := range row {
			out[j] += v * wv
		}
	}
	l.Activation.apply(out)
}

func (l *Dense) backward(in, out, dOut []float32, _ []int32, grads [][]float32, dIn []float32) {
	U := l.Units
	w := l.w.Value
	gw, gb := grads[0], grads[1]

	l.Activation.derive(out, dOut)
	for j, d := range dOut {
		gb[j] += d
	}
	if allZero(dOut) {
		return
	}
	for i, v := range in {
		row := w[i*U : (i+1)*U]
		if v != 0 {
			grow := gw[i*U : (i+1)*U]
			for j, d := range dOut {
				grow[j] += v * d
			}
		}
		if dIn != nil {
			var s float32
			for j, d := range dOut {
				s += row[j] * d
			}
			dIn[i] = s
		}
	}
}

// Dropout zeroes inputs with probability Rate during training and rescales the rest by
// 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float32
}

func (l *Dropout) Name() string { return "dropout" }

func (l *Dropout) build(in Shape, _ *rand.Rand) (Shape, error) {
	if l.Rate < 0 || l.Rate >= 1 {
		return Shape{}, fmt.Errorf("dropout: rate must be in [0, 1), got %g", l.Rate)
	}
	return in, nil
}

func (l *Dropout) params() []*Param { return nil }

// aux is 1 for kept units.
func (l *Dropout) forward(in, out []float32, aux []int32, train bool, rng *rand.Rand) {
	if !train || l.Rate == 0 {
		copy(out, in)
		for i := range aux[:len(in)] {
			aux[i] = 1
		}
		return
	}
	scale := 1 / (1 - l.Rate)
	for i, v := range in {
		if rng.Float32() < l.Rate {
			out[i] = 0
			aux[i] = 0
		} else {
			out[i] = v * scale
			aux[i] = 1
		}
	}
}

func (l *Dropout) backward(_, _, dOut []float32, aux []int32, _ [][]float32, dIn []float32) {
	if dIn == nil {
		return
	}
	scale := float32(1)
	if l.Rate > 0 {
		scale = 1 / (1 - l.Rate)
	}
	for i, d := range dOut {
		if aux[i] == 1 {
			dIn[i] = d * scale
		}
	}
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
