package calibration

import (
	"fmt"

	"github.com/visionlab/onelight/gamut"
	"github.com/visionlab/onelight/lsq"
)

// Predict returns the SPD the linear device model predicts for the given
// primaries: basis·primaries + darkOffset.  Pure, no side effects.
func (c *Calibration) Predict(primaries []float64) ([]float64, error) {
	w, p := c.basis.Dims()
	if len(primaries) != p {
		return nil, fmt.Errorf("%w: got %d primaries, calibration has %d", ErrDimensionMismatch, len(primaries), p)
	}
	out := make([]float64, w)
	for i := 0; i < w; i++ {
		s := c.dark[i]
		for j := 0; j < p; j++ {
			s += c.basis.At(i, j) * primaries[j]
		}
		out[i] = s
	}
	return out, nil
}

// PredictTruncated clamps primaries into gamut before applying the linear
// model.  This is the gamut-aware forward map the iterative estimator
// searches against.
func (c *Calibration) PredictTruncated(primaries []float64) ([]float64, bool, error) {
	clamped, truncated := gamut.Truncate(primaries, c.Mode)
	spd, err := c.Predict(clamped)
	return spd, truncated, err
}

// PrimariesFor inverts the device model: it finds in-gamut primaries whose
// predicted SPD approximates targetSpd, by solving
//
//	minimize ||basis·p + dark - targetSpd||^2 + smoothness*||D·p||^2
//
// over the gamut box, with D the second-difference operator across
// primaries.  smoothness trades fit accuracy against noise sensitivity;
// zero is permitted but risks fitting measurement noise.
func (c *Calibration) PrimariesFor(targetSpd []float64, smoothness float64) ([]float64, error) {
	w, p := c.basis.Dims()
	if len(targetSpd) != w {
		return nil, fmt.Errorf("%w: target SPD has %d samples, calibration has %d", ErrDimensionMismatch, len(targetSpd), w)
	}
	rhs := make([]float64, w)
	for i := range rhs {
		rhs[i] = targetSpd[i] - c.dark[i]
	}
	lower, upper := c.Mode.Bounds()
	lo := make([]float64, p)
	hi := make([]float64, p)
	for j := range lo {
		lo[j] = lower
		hi[j] = upper
	}
	return lsq.SolveBox(c.basis, rhs, nil, smoothness, lo, hi)
}
