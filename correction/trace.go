package correction

// Iteration is one completed pass of the correction loop.  All slices are
// owned by the trace; nothing aliases the loop's working vectors.
type Iteration struct {
	// Index is 1-based
	Index int

	// LearningRate actually used this iteration
	LearningRate float64

	// PrimariesUsed were driven to the hardware for this measurement
	PrimariesUsed []float64

	// MeasuredSpd is the radiometer reading, after scale correction
	MeasuredSpd []float64

	// MeasuredContrasts is populated in contrast mode only
	MeasuredContrasts []float64

	// TemperatureC is the advisory temperature side-channel, may be nil
	TemperatureC []float64

	// DeltaApplied is the correction actually taken, after truncation
	DeltaApplied []float64

	// NextPrimaries == PrimariesUsed + DeltaApplied, exactly
	NextPrimaries []float64

	// Truncated reports whether the gamut policy moved any element
	Truncated bool

	// RefinementConverged is false when the nonlinear refiner hit its
	// budget; diagnostic only, the best iterate was still used
	RefinementConverged bool

	// RMSError of the measurement against the target, in SPD or contrast
	// space depending on the loop mode
	RMSError float64
}

// Trace is the append-only record of a correction run.  Single writer (the
// loop); read freely after the run completes.
type Trace struct {
	iterations []Iteration
}

func (t *Trace) append(it Iteration) {
	t.iterations = append(t.iterations, it)
}

// Len returns the number of completed iterations.
func (t *Trace) Len() int { return len(t.iterations) }

// Iterations returns the recorded iterations in order.
func (t *Trace) Iterations() []Iteration {
	out := make([]Iteration, len(t.iterations))
	copy(out, t.iterations)
	return out
}

// Best returns the iteration with the minimum RMS error, which is not
// necessarily the last.  ok is false for an empty trace.
func (t *Trace) Best() (it Iteration, ok bool) {
	if len(t.iterations) == 0 {
		return Iteration{}, false
	}
	best := 0
	for i, rec := range t.iterations {
		if rec.RMSError < t.iterations[best].RMSError {
			best = i
		}
	}
	return t.iterations[best], true
}
