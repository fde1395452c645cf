package correction

import (
	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/lsq"
)

// ComputeDelta is the one-shot linear correction: treating the local
// relationship between primary deltas and SPD deltas as linear
// (deltaSPD ~ basis·delta), it solves for the delta that drives measuredSpd
// toward targetSpd, scaled by learningRate so only a fraction of the full
// correction is taken per iteration.
//
// The solve is box-constrained to [lo-primariesUsed, hi-primariesUsed] so
// the returned delta is always feasible from the current operating point,
// including when some primaries are already saturated at a gamut bound.
// The result is not gamut-truncated here; the controller applies the gamut
// policy uniformly when the delta is applied.
func ComputeDelta(primariesUsed, measuredSpd, targetSpd []float64, learningRate, smoothness float64, cal *calibration.Calibration) ([]float64, error) {
	p := cal.NPrimaries()
	w := cal.NSamples()
	if len(primariesUsed) != p {
		return nil, configErrf("primariesUsed has length %d, calibration has %d primaries", len(primariesUsed), p)
	}
	if len(measuredSpd) != w || len(targetSpd) != w {
		return nil, configErrf("SPD lengths %d, %d do not match calibration's %d samples", len(measuredSpd), len(targetSpd), w)
	}
	if learningRate <= 0 || learningRate > 1 {
		return nil, configErrf("learning rate %v out of (0, 1]", learningRate)
	}

	rhs := make([]float64, w)
	for i := range rhs {
		rhs[i] = learningRate * (targetSpd[i] - measuredSpd[i])
	}
	lo, hi := deltaBounds(primariesUsed, cal)
	return lsq.SolveBox(cal.Basis(), rhs, nil, smoothness, lo, hi)
}

// deltaBounds returns the feasible box for a delta from the current
// operating point: adding the delta must stay within the gamut bounds.
func deltaBounds(primariesUsed []float64, cal *calibration.Calibration) (lo, hi []float64) {
	lower, upper := cal.Mode.Bounds()
	lo = make([]float64, len(primariesUsed))
	hi = make([]float64, len(primariesUsed))
	for i, v := range primariesUsed {
		lo[i] = lower - v
		hi[i] = upper - v
	}
	return lo, hi
}
