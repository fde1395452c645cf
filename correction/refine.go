package correction

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/visionlab/onelight/calibration"
)

// refinement budget; tolerance and caps are configuration, not semantics
const (
	refineMaxIterations = 2000
	refineConvergeTol   = 1e-14
	refineConvergeIters = 60
)

// RefineDelta improves a delta-primaries estimate by searching against the
// actual gamut-truncated device model rather than the bare linear one.  It
// minimizes the distance between the prediction for primariesUsed+delta
// (truncated into gamut before the linear model is applied) and the partial
// step target measuredSpd + learningRate*(targetSpd - measuredSpd).
//
// delta0 is the warm start, normally the linear estimator's output; nil
// starts from zero.  Non-convergence within the budget is not an error: the
// best iterate found is returned with converged=false, and the outer loop
// decides whether the overall sequence succeeded.  The returned delta is
// clamped into the feasible box, and the prediction for the accepted delta
// is returned alongside.
func RefineDelta(delta0, primariesUsed, measuredSpd, targetSpd []float64, learningRate float64, cal *calibration.Calibration) (delta, predictedSpd []float64, converged bool, err error) {
	p := cal.NPrimaries()
	w := cal.NSamples()
	if len(primariesUsed) != p {
		return nil, nil, false, configErrf("primariesUsed has length %d, calibration has %d primaries", len(primariesUsed), p)
	}
	if len(measuredSpd) != w || len(targetSpd) != w {
		return nil, nil, false, configErrf("SPD lengths %d, %d do not match calibration's %d samples", len(measuredSpd), len(targetSpd), w)
	}
	if delta0 != nil && len(delta0) != p {
		return nil, nil, false, configErrf("warm start has length %d, want %d", len(delta0), p)
	}

	// partial step toward the goal, same damping rationale as the linear
	// estimator
	targetLR := make([]float64, w)
	for i := range targetLR {
		targetLR[i] = measuredSpd[i] + learningRate*(targetSpd[i]-measuredSpd[i])
	}

	lo, hi := deltaBounds(primariesUsed, cal)
	objective := func(x []float64) float64 {
		cand := make([]float64, p)
		for i := range cand {
			cand[i] = primariesUsed[i] + clampf(x[i], lo[i], hi[i])
		}
		spd, _, perr := cal.PredictTruncated(cand)
		if perr != nil {
			return math.Inf(1)
		}
		ss := 0.0
		for i := range spd {
			d := targetLR[i] - spd[i]
			ss += d * d
		}
		return ss
	}

	x0 := make([]float64, p)
	if delta0 != nil {
		for i := range x0 {
			x0[i] = clampf(delta0[i], lo[i], hi[i])
		}
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: refineMaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   refineConvergeTol,
			Iterations: refineConvergeIters}}
	// the truncated objective is piecewise linear at the clamp boundary,
	// so a derivative-free method avoids fabricating gradients there
	result, oerr := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})

	best := x0
	if result != nil && result.X != nil && objective(result.X) <= objective(x0) {
		best = result.X
	}
	delta = make([]float64, p)
	for i := range delta {
		delta[i] = clampf(best[i], lo[i], hi[i])
	}

	cand := make([]float64, p)
	for i := range cand {
		cand[i] = primariesUsed[i] + delta[i]
	}
	predictedSpd, _, perr := cal.PredictTruncated(cand)
	if perr != nil {
		return nil, nil, false, perr
	}
	return delta, predictedSpd, oerr == nil, nil
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
