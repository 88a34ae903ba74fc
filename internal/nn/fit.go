package nn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

type FitConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	Seed            int64
	Workers         int

	// OnEpoch is called after every epoch with its 1-based number and the history so far.
	OnEpoch func(epoch int, h *History)
}

// History holds per-epoch metrics. Validation series are empty when no samples were held out.
type History struct {
	Loss        []float64 `yaml:"loss"`
	Accuracy    []float64 `yaml:"accuracy"`
	ValLoss     []float64 `yaml:"val_loss,omitempty"`
	ValAccuracy []float64 `yaml:"val_accuracy,omitempty"`
}

// Epochs is the number of completed epochs.
func (h *History) Epochs() int { return len(h.Loss) }

var ErrNoTrainingData = errors.New("no training samples")

// Fit trains m with mini-batch Adam. The last ValidationSplit share of the samples is held
// out before shuffling and evaluated after every epoch.
func Fit(ctx context.Context, m *Model, x, y [][]float32, cfg FitConfig) (*History, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d samples but %d targets", len(x), len(y))
	}
	if err := m.checkSamples(x, y); err != nil {
		return nil, err
	}

	split := int(float64(len(x)) * (1 - cfg.ValidationSplit))
	if split == 0 {
		return nil, ErrNoTrainingData
	}
	trainX, trainY := x[:split], y[:split]
	valX, valY := x[split:], y[split:]

	batch := max(cfg.BatchSize, 1)
	workers := max(cfg.Workers, 1)
	wss := make([]*workspace, min(workers, batch, split))
	for i := range wss {
		wss[i] = m.newWorkspace(true)
	}

	params := m.Params()
	total := make([][]float32, len(params))
	for i, p := range params {
		total[i] = make([]float32, len(p.Value))
	}
	opt := NewAdam(cfg.LearningRate)

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 1))
	order := make([]int, split)
	for i := range order {
		order[i] = i
	}

	hist := &History{}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum, correct float64
		for start := 0; start < split; start += batch {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			idx := order[start:min(start+batch, split)]
			l, c, err := m.trainBatch(ctx, wss, trainX, trainY, idx, total, cfg.Seed, epoch)
			if err != nil {
				return hist, err
			}
			lossSum += l
			correct += c
			opt.Step(params, total)
		}
		hist.Loss = append(hist.Loss, lossSum/float64(split))
		hist.Accuracy = append(hist.Accuracy, correct/float64(split))

		if len(valX) > 0 {
			vl, va, err := m.Evaluate(ctx, valX, valY, workers)
			if err != nil {
				return hist, err
			}
			hist.ValLoss = append(hist.ValLoss, vl)
			hist.ValAccuracy = append(hist.ValAccuracy, va)
		}
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(epoch+1, hist)
		}
	}
	return hist, nil
}

// trainBatch splits idx into contiguous chunks, one per workspace, and sums the parameter
// gradients into total in chunk order. It returns the summed loss and correct count.
func (m *Model) trainBatch(ctx context.Context, wss []*workspace, x, y [][]float32, idx []int, total [][]float32, seed int64, epoch int) (float64, float64, error) {
	n := len(idx)
	parts := min(len(wss), n)
	chunk := (n + parts - 1) / parts
	scale := 1 / float32(n)

	type result struct{ loss, correct float64 }
	results := make([]result, parts)

	g, ctx := errgroup.WithContext(ctx)
	used := 0
	for w := 0; w < parts; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := min(lo+chunk, n)
		ws := wss[w]
		used++
		g.Go(func() error {
			ws.zeroGrads()
			var r result
			for _, k := range idx[lo:hi] {
				if err := ctx.Err(); err != nil {
					return err
				}
				// dropout masks depend on the sample and epoch only
				ws.pcg.Seed(uint64(seed), uint64(epoch)<<32|uint64(k))
				probs := m.forward(ws, x[k], true)
				r.loss += CrossEntropy(probs, y[k], scale, m.outputDelta(ws))
				if Correct(probs, y[k]) {
					r.correct++
				}
				m.backward(ws)
			}
			results[w] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	for i := range total {
		clear(total[i])
	}
	var loss, correct float64
	for w := 0; w < used; w++ {
		for i, gr := range wss[w].flat {
			dst := total[i]
			for j, v := range gr {
				dst[j] += v
			}
		}
		loss += results[w].loss
		correct += results[w].correct
	}
	return loss, correct, nil
}

// Evaluate returns the mean loss and accuracy over x in inference mode.
func (m *Model) Evaluate(ctx context.Context, x, y [][]float32, workers int) (float64, float64, error) {
	if len(x) == 0 {
		return 0, 0, nil
	}
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("%d samples but %d targets", len(x), len(y))
	}
	if err := m.checkSamples(x, y); err != nil {
		return 0, 0, err
	}
	parts := min(max(workers, 1), len(x))
	chunk := (len(x) + parts - 1) / parts
	losses := make([]float64, parts)
	hits := make([]float64, parts)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < parts; w++ {
		lo := w * chunk
		if lo >= len(x) {
			break
		}
		hi := min(lo+chunk, len(x))
		g.Go(func() error {
			ws := m.newWorkspace(false)
			for k := lo; k < hi; k++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				probs := m.forward(ws, x[k], false)
				losses[w] += CrossEntropy(probs, y[k], 0, nil)
				if Correct(probs, y[k]) {
					hits[w]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	var loss, correct float64
	for w := range losses {
		loss += losses[w]
		correct += hits[w]
	}
	n := float64(len(x))
	return loss / n, correct / n, nil
}

func (m *Model) checkSamples(x, y [][]float32) error {
	in, out := m.Input().Size(), m.Output().Size()
	for i := range x {
		if len(x[i]) != in {
			return fmt.Errorf("sample %d has %d values, model expects %d", i, len(x[i]), in)
		}
		if len(y[i]) != out {
			return fmt.Errorf("target %d has %d values, model expects %d", i, len(y[i]), out)
		}
	}
	return nil
}
