package correction

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/lsq"
	"github.com/visionlab/onelight/receptors"
)

// ComputeContrastDelta is the linear estimator recast into photoreceptor
// contrast space.  The local model is
//
//	deltaContrast_r ~ (T·basis·delta)_r / (T·background)_r
//
// and the solve drives the measured contrasts a learningRate fraction of
// the way toward targetContrasts, box-constrained exactly like ComputeDelta.
// The background SPD is fixed context, measured once up front by the
// caller; a background exciting any receptor class to zero is a
// ConfigurationError raised before any computation.
func ComputeContrastDelta(primariesUsed, targetContrasts, measuredSpd, backgroundSpd []float64, rcpt *receptors.Sensitivities, learningRate, smoothness float64, cal *calibration.Calibration) ([]float64, error) {
	p := cal.NPrimaries()
	w := cal.NSamples()
	r := rcpt.NClasses()
	if len(primariesUsed) != p {
		return nil, configErrf("primariesUsed has length %d, calibration has %d primaries", len(primariesUsed), p)
	}
	if len(measuredSpd) != w || len(backgroundSpd) != w {
		return nil, configErrf("SPD lengths %d, %d do not match calibration's %d samples", len(measuredSpd), len(backgroundSpd), w)
	}
	if rcpt.NSamples() != w {
		return nil, configErrf("sensitivity matrix has %d samples, calibration has %d", rcpt.NSamples(), w)
	}
	if len(targetContrasts) != r {
		return nil, configErrf("target contrasts have length %d, sensitivity matrix has %d classes", len(targetContrasts), r)
	}
	if learningRate <= 0 || learningRate > 1 {
		return nil, configErrf("learning rate %v out of (0, 1]", learningRate)
	}

	bgExc, err := rcpt.CheckBackground(backgroundSpd)
	if err != nil {
		return nil, configErr("background excitation", err)
	}
	measuredContrasts, err := rcpt.Contrasts(measuredSpd, backgroundSpd)
	if err != nil {
		return nil, configErr("measured contrasts", err)
	}

	// A = diag(1/bgExc) · T · basis, the linear map from delta primaries
	// to delta contrasts
	a := contrastJacobian(rcpt, bgExc, cal)
	rhs := make([]float64, r)
	for i := range rhs {
		rhs[i] = learningRate * (targetContrasts[i] - measuredContrasts[i])
	}
	lo, hi := deltaBounds(primariesUsed, cal)
	return lsq.SolveBox(a, rhs, nil, smoothness, lo, hi)
}

// RefineContrastDelta refines a contrast-space delta estimate against the
// gamut-truncated device model, mirroring RefineDelta with the error
// computed in contrast space.  It returns the refined delta and the
// contrasts predicted for it.
func RefineContrastDelta(delta0, primariesUsed, targetContrasts, measuredSpd, backgroundSpd []float64, rcpt *receptors.Sensitivities, learningRate float64, cal *calibration.Calibration) (delta, predictedContrasts []float64, converged bool, err error) {
	p := cal.NPrimaries()
	if delta0 != nil && len(delta0) != p {
		return nil, nil, false, configErrf("warm start has length %d, want %d", len(delta0), p)
	}
	bgExc, err := rcpt.CheckBackground(backgroundSpd)
	if err != nil {
		return nil, nil, false, configErr("background excitation", err)
	}
	measuredContrasts, err := rcpt.Contrasts(measuredSpd, backgroundSpd)
	if err != nil {
		return nil, nil, false, configErr("measured contrasts", err)
	}
	if len(targetContrasts) != len(measuredContrasts) {
		return nil, nil, false, configErrf("target contrasts have length %d, want %d", len(targetContrasts), len(measuredContrasts))
	}

	targetLR := make([]float64, len(targetContrasts))
	for i := range targetLR {
		targetLR[i] = measuredContrasts[i] + learningRate*(targetContrasts[i]-measuredContrasts[i])
	}

	lo, hi := deltaBounds(primariesUsed, cal)
	predict := func(x []float64) ([]float64, error) {
		cand := make([]float64, p)
		for i := range cand {
			cand[i] = primariesUsed[i] + clampf(x[i], lo[i], hi[i])
		}
		spd, _, perr := cal.PredictTruncated(cand)
		if perr != nil {
			return nil, perr
		}
		exc, perr := rcpt.Excitations(spd)
		if perr != nil {
			return nil, perr
		}
		out := make([]float64, len(exc))
		for i := range exc {
			out[i] = (exc[i] - bgExc[i]) / bgExc[i]
		}
		return out, nil
	}
	objective := func(x []float64) float64 {
		c, perr := predict(x)
		if perr != nil {
			return math.Inf(1)
		}
		ss := 0.0
		for i := range c {
			d := targetLR[i] - c[i]
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
	result, oerr := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})

	best := x0
	if result != nil && result.X != nil && objective(result.X) <= objective(x0) {
		best = result.X
	}
	delta = make([]float64, p)
	for i := range delta {
		delta[i] = clampf(best[i], lo[i], hi[i])
	}
	predictedContrasts, err = predict(delta)
	if err != nil {
		return nil, nil, false, err
	}
	return delta, predictedContrasts, oerr == nil, nil
}

// contrastJacobian forms diag(1/bgExc)·T·basis, the R x P linear map from
// delta primaries to delta contrasts.
func contrastJacobian(rcpt *receptors.Sensitivities, bgExc []float64, cal *calibration.Calibration) *mat.Dense {
	t := rcpt.Matrix()
	basis := cal.Basis()
	r, w := t.Dims()
	_, p := basis.Dims()
	out := mat.NewDense(r, p, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < p; j++ {
			s := 0.0
			for k := 0; k < w; k++ {
				s += t.At(i, k) * basis.At(k, j)
			}
			out.Set(i, j, s/bgExc[i])
		}
	}
	return out
}
