package correction

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/gamut"
	"github.com/visionlab/onelight/receptors"
)

// Status is the terminal state of a correction run.
type Status int

const (
	// StatusDone means the full iteration budget completed.
	StatusDone Status = iota

	// StatusFailed means a measurement failed; the trace is partial.
	StatusFailed

	// StatusAborted means the caller aborted between iterations; the
	// trace is partial.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the outcome of a correction run.  CorrectedPrimaries is the
// PrimariesUsed of the best (minimum RMS error) iterate in the trace, not
// necessarily the last; it is nil when no iteration completed.
type Result struct {
	Status             Status
	CorrectedPrimaries []float64
	BestIteration      int
	Trace              Trace
}

// Loop owns a multi-iteration hardware-in-the-loop correction run.  It is
// single threaded and synchronous: each iteration blocks on the real
// measurement, and nothing crosses iteration boundaries except the
// append-only trace and the read-only calibration.
type Loop struct {
	cal    *calibration.Calibration
	dev    Measurer
	params Params
	logger *log.Logger

	// SPD mode
	targetSpd []float64

	// contrast mode
	targetContrasts []float64
	backgroundSpd   []float64
	rcpt            *receptors.Sensitivities

	seed []float64

	runTrace Trace

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSpdLoop builds a correction loop toward a target SPD.  seed may be nil,
// in which case the starting primaries are resolved by inverting the device
// model for the target.  All configuration problems surface here, before
// any hardware interaction.  logger may be nil for a quiet run.
func NewSpdLoop(dev Measurer, cal *calibration.Calibration, params Params, targetSpd, seed []float64, logger *log.Logger) (*Loop, error) {
	if dev == nil {
		return nil, configErrf("no measurer supplied")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(targetSpd) != cal.NSamples() {
		return nil, configErrf("target SPD has %d samples, calibration has %d", len(targetSpd), cal.NSamples())
	}
	if seed != nil && len(seed) != cal.NPrimaries() {
		return nil, configErrf("seed has %d primaries, calibration has %d", len(seed), cal.NPrimaries())
	}
	return &Loop{
		cal:       cal,
		dev:       dev,
		params:    params,
		logger:    logger,
		targetSpd: copyVec(targetSpd),
		seed:      copyVec(seed),
		stop:      make(chan struct{})}, nil
}

// NewContrastLoop builds a correction loop toward target photoreceptor
// contrasts against a fixed background SPD.  The background is measured
// once, up front, by the caller and reused for every iteration; a
// background exciting any receptor class to zero is rejected here, before
// any hardware call.  seed is required in contrast mode.
func NewContrastLoop(dev Measurer, cal *calibration.Calibration, params Params, targetContrasts, backgroundSpd []float64, rcpt *receptors.Sensitivities, seed []float64, logger *log.Logger) (*Loop, error) {
	if dev == nil {
		return nil, configErrf("no measurer supplied")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rcpt == nil {
		return nil, configErrf("no receptor sensitivities supplied")
	}
	if rcpt.NSamples() != cal.NSamples() {
		return nil, configErrf("sensitivity matrix has %d samples, calibration has %d", rcpt.NSamples(), cal.NSamples())
	}
	if len(targetContrasts) != rcpt.NClasses() {
		return nil, configErrf("target contrasts have length %d, sensitivity matrix has %d classes", len(targetContrasts), rcpt.NClasses())
	}
	if len(backgroundSpd) != cal.NSamples() {
		return nil, configErrf("background SPD has %d samples, calibration has %d", len(backgroundSpd), cal.NSamples())
	}
	if seed == nil {
		return nil, configErrf("contrast mode requires seed primaries")
	}
	if len(seed) != cal.NPrimaries() {
		return nil, configErrf("seed has %d primaries, calibration has %d", len(seed), cal.NPrimaries())
	}
	if _, err := rcpt.CheckBackground(backgroundSpd); err != nil {
		return nil, configErr("background", err)
	}
	return &Loop{
		cal:             cal,
		dev:             dev,
		params:          params,
		logger:          logger,
		targetContrasts: copyVec(targetContrasts),
		backgroundSpd:   copyVec(backgroundSpd),
		rcpt:            rcpt,
		seed:            copyVec(seed),
		stop:            make(chan struct{})}, nil
}

// Abort requests that the run stop before its next iteration.  Safe to call
// from another goroutine, and more than once.  The run returns its partial
// trace with StatusAborted.
func (l *Loop) Abort() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) contrastMode() bool { return l.rcpt != nil }

// Run executes the correction sequence: measure, estimate, apply, for the
// fixed iteration budget, then selects the best iterate.  There is no early
// stop and no internal retry; a measurement failure returns the partial
// trace with StatusFailed and a MeasurementError.
func (l *Loop) Run() (Result, error) {
	res := Result{}

	// Init: resolve starting primaries
	cur := l.seed
	if cur == nil {
		p, err := l.cal.PrimariesFor(l.targetSpd, l.params.Smoothness)
		if err != nil {
			return res, configErr("resolving seed primaries", err)
		}
		cur = p
	}
	if clamped, truncated := gamut.Truncate(cur, l.cal.Mode); truncated {
		l.logf("seed primaries out of gamut, truncated")
		cur = clamped
	}
	if l.contrastMode() {
		l.logf("contrast mode: background measured once up front; engine drift over the run is not compensated in the background")
	}

	for i := 1; i <= l.params.NIterations; i++ {
		select {
		case <-l.stop:
			l.logf("aborted before iteration %d", i)
			res.Status = StatusAborted
			l.finalize(&res)
			return res, nil
		default:
		}

		// Measuring
		m, err := l.dev.MeasurePrimaries(cur)
		if err != nil {
			res.Status = StatusFailed
			l.finalize(&res)
			return res, &MeasurementError{Iteration: i, Err: err}
		}
		if len(m.Spd) != l.cal.NSamples() {
			res.Status = StatusFailed
			l.finalize(&res)
			return res, &MeasurementError{Iteration: i,
				Err: fmt.Errorf("measurement returned %d samples, want %d", len(m.Spd), l.cal.NSamples())}
		}
		spd := make([]float64, len(m.Spd))
		for j := range spd {
			spd[j] = m.Spd[j] * l.cal.ScaleFactor
		}
		if !finite(spd) {
			res.Status = StatusFailed
			l.finalize(&res)
			return res, &MeasurementError{Iteration: i, Err: errors.New("measurement contains NaN or Inf")}
		}

		// Estimating
		rate := l.params.RateAt(i)
		var (
			delta             []float64
			measuredContrasts []float64
			rmsErr            float64
			refConverged      = true
		)
		if l.contrastMode() {
			measuredContrasts, err = l.rcpt.Contrasts(spd, l.backgroundSpd)
			if err != nil {
				res.Status = StatusFailed
				l.finalize(&res)
				return res, err
			}
			rmsErr = rms(l.targetContrasts, measuredContrasts)
			delta, err = ComputeContrastDelta(cur, l.targetContrasts, spd, l.backgroundSpd, l.rcpt, rate, l.params.Smoothness, l.cal)
			if err != nil {
				res.Status = StatusFailed
				l.finalize(&res)
				return res, err
			}
			if l.params.IterativeRefinement {
				delta, _, refConverged, err = RefineContrastDelta(delta, cur, l.targetContrasts, spd, l.backgroundSpd, l.rcpt, rate, l.cal)
				if err != nil {
					res.Status = StatusFailed
					l.finalize(&res)
					return res, err
				}
			}
		} else {
			rmsErr = rms(l.targetSpd, spd)
			delta, err = ComputeDelta(cur, spd, l.targetSpd, rate, l.params.Smoothness, l.cal)
			if err != nil {
				res.Status = StatusFailed
				l.finalize(&res)
				return res, err
			}
			if l.params.IterativeRefinement {
				delta, _, refConverged, err = RefineDelta(delta, cur, spd, l.targetSpd, rate, l.cal)
				if err != nil {
					res.Status = StatusFailed
					l.finalize(&res)
					return res, err
				}
			}
		}
		if !refConverged {
			l.logf("iteration %d: refinement hit its budget, using best iterate", i)
		}
		if math.IsNaN(rmsErr) || math.IsInf(rmsErr, 0) {
			res.Status = StatusFailed
			l.finalize(&res)
			return res, &MeasurementError{Iteration: i, Err: errors.New("error metric is not finite")}
		}

		// Applying
		deltaApplied, next, truncated, ok := applyDelta(cur, delta, l.cal.Mode)
		if !ok {
			res.Status = StatusFailed
			l.finalize(&res)
			return res, &InvariantViolationError{Iteration: i, Detail: "could not reconcile truncated delta with gamut bounds"}
		}
		// consistency check: state corruption here is a bug, never
		// suppressed
		for j := range next {
			if next[j] != cur[j]+deltaApplied[j] {
				res.Status = StatusFailed
				l.finalize(&res)
				return res, &InvariantViolationError{Iteration: i, Detail: "nextPrimaries != primariesUsed + deltaApplied"}
			}
		}

		l.runTrace.append(Iteration{
			Index:               i,
			LearningRate:        rate,
			PrimariesUsed:       copyVec(cur),
			MeasuredSpd:         spd,
			MeasuredContrasts:   measuredContrasts,
			TemperatureC:        copyVec(m.TemperatureC),
			DeltaApplied:        deltaApplied,
			NextPrimaries:       next,
			Truncated:           truncated,
			RefinementConverged: refConverged,
			RMSError:            rmsErr})
		l.logf("iteration %d: rms error %.6g, rate %.3f, truncated=%v", i, rmsErr, rate, truncated)

		cur = next
	}

	// Finalizing
	res.Status = StatusDone
	l.finalize(&res)
	return res, nil
}

func (l *Loop) finalize(res *Result) {
	res.Trace = l.runTrace
	if best, ok := l.runTrace.Best(); ok {
		res.CorrectedPrimaries = copyVec(best.PrimariesUsed)
		res.BestIteration = best.Index
	}
}

func (l *Loop) logf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// applyDelta computes next = used + delta, truncates into gamut, and
// re-derives the delta actually applied so that
// next == used + deltaApplied holds exactly in floating point.  The
// re-derivation can push an element a rounding unit past a bound, so it
// iterates to a fixed point; failure to stabilize within a few rounds
// signals corruption.
func applyDelta(used, delta []float64, mode gamut.Mode) (deltaApplied, next []float64, truncated, ok bool) {
	raw := make([]float64, len(used))
	for i := range raw {
		raw[i] = used[i] + delta[i]
	}
	clamped, truncated := gamut.Truncate(raw, mode)
	deltaApplied = make([]float64, len(used))
	for i := range deltaApplied {
		deltaApplied[i] = clamped[i] - used[i]
	}
	for tries := 0; tries < 4; tries++ {
		next = make([]float64, len(used))
		for i := range next {
			next[i] = used[i] + deltaApplied[i]
		}
		if gamut.InGamut(next, mode) {
			return deltaApplied, next, truncated, true
		}
		clamped, _ = gamut.Truncate(next, mode)
		truncated = true
		for i := range deltaApplied {
			deltaApplied[i] = clamped[i] - used[i]
		}
	}
	return nil, nil, truncated, false
}

func copyVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func rms(target, actual []float64) float64 {
	s := 0.0
	for i := range target {
		d := target[i] - actual[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(target)))
}
