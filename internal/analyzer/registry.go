package analyzer

import "fmt"

// Params tunes a detector. Zero fields keep the detector defaults.
type Params struct {
	MinSigma  float64
	MaxSigma  float64
	NumSigma  int
	Threshold float64
	Overlap   float64
	Workers   int
}

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, p Params) (Detector, error) {
	switch variant {
	case "log", "":
		d := NewLoGDetector()
		if p.MinSigma > 0 {
			d.MinSigma = p.MinSigma
		}
		if p.MaxSigma > 0 {
			d.MaxSigma = p.MaxSigma
		}
		if p.NumSigma > 0 {
			d.NumSigma = p.NumSigma
		}
		if p.Threshold > 0 {
			d.Threshold = p.Threshold
		}
		if p.Overlap > 0 {
			d.Overlap = p.Overlap
		}
		if p.Workers > 0 {
			d.Workers = p.Workers
		}
		return d, nil
	case "dog":
		return nil, fmt.Errorf("DoG detector not yet implemented")
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
