package nn

import "math"

const probEpsilon = 1e-7

// CrossEntropy returns the categorical cross-entropy of one sample. When grad is non-nil
// it receives scale·(p − y), the gradient with respect to the softmax logits.
func CrossEntropy(probs, target []float32, scale float32, grad []float32) float64 {
	var loss float64
	for i, p := range probs {
		if target[i] != 0 {
			q := math.Min(math.Max(float64(p), probEpsilon), 1-probEpsilon)
			loss -= float64(target[i]) * math.Log(q)
		}
		if grad != nil {
			grad[i] = (p - target[i]) * scale
		}
	}
	return loss
}

// Correct reports whether the predicted class matches the one-hot target.
func Correct(probs, target []float32) bool {
	return argmax(probs) == argmax(target)
}
