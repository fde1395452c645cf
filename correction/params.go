package correction

// Params configures a correction run.  Zero value is not usable; start from
// DefaultParams and override.
type Params struct {
	// NIterations is the fixed iteration budget.  There is no early stop:
	// SPD measurement noise makes stopping heuristics unreliable, so the
	// loop runs the full budget and the best iterate is chosen post hoc.
	NIterations int

	// LearningRate is the initial step fraction, in (0, 1].  The linear
	// model is only locally valid; taking the full correction each
	// iteration causes oscillation near the gamut boundary.
	LearningRate float64

	// LearningRateDecrease enables the decaying schedule.
	LearningRateDecrease bool

	// DecayFactor sets the total decay: the final iteration runs at
	// (1-DecayFactor)*LearningRate.
	DecayFactor float64

	// Smoothness is the regularization weight on the second-difference of
	// delta primaries in the linear solve.
	Smoothness float64

	// IterativeRefinement enables the nonlinear, gamut-aware refinement of
	// the linear estimate.
	IterativeRefinement bool
}

// DefaultParams returns the parameter values used in practice on the rig.
func DefaultParams() Params {
	return Params{
		NIterations:          20,
		LearningRate:         0.8,
		LearningRateDecrease: true,
		DecayFactor:          0.5,
		Smoothness:           1e-3,
		IterativeRefinement:  true}
}

// Validate checks the parameters, returning a ConfigurationError on the
// first problem found.
func (p Params) Validate() error {
	if p.NIterations < 1 {
		return configErrf("NIterations must be >= 1, got %d", p.NIterations)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return configErrf("LearningRate must be in (0, 1], got %v", p.LearningRate)
	}
	if p.LearningRateDecrease && (p.DecayFactor < 0 || p.DecayFactor >= 1) {
		return configErrf("DecayFactor must be in [0, 1), got %v", p.DecayFactor)
	}
	if p.Smoothness < 0 {
		return configErrf("Smoothness must be >= 0, got %v", p.Smoothness)
	}
	return nil
}

// RateAt returns the learning rate for 1-based iteration i.  With decay
// enabled the schedule is linear from LearningRate at i=1 down to
// (1-DecayFactor)*LearningRate at i=NIterations; it is non-increasing in i.
func (p Params) RateAt(i int) float64 {
	if !p.LearningRateDecrease || p.NIterations <= 1 {
		return p.LearningRate
	}
	return p.LearningRate * (1 - float64(i-1)*p.DecayFactor/float64(p.NIterations-1))
}
