/*Package sim provides a simulated OneLight engine plus spectroradiometer.

The simulated rig implements correction.Measurer with the calibration's own
linear model, so a correction run against it with zero noise converges to
machine precision.  Noise, multiplicative lamp drift, and injected failures
let tests and bench scripts exercise the unhappy paths without hardware.
*/
package sim

import (
	"errors"
	"math/rand"

	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/correction"
	"github.com/visionlab/onelight/gamut"
)

// ErrInjectedFailure is what a scripted measurement failure returns.
var ErrInjectedFailure = errors.New("injected measurement failure")

// Rig is a simulated light engine + radiometer pair.  Fields may be set
// before first use; the zero values give a noiseless, drift-free rig that
// never fails.
type Rig struct {
	// Noise is the stddev of additive gaussian noise per wavelength sample
	Noise float64

	// Drift is the per-measurement fractional droop of lamp output; each
	// successive measurement is scaled by a further (1 - Drift)
	Drift float64

	// FailOnCall injects a failure on the nth (1-based) measurement; zero
	// disables injection
	FailOnCall int

	// TemperatureC is reported as the advisory side-channel when nonzero
	TemperatureC float64

	cal   *calibration.Calibration
	rng   *rand.Rand
	calls int
}

// New returns a rig simulating the device described by cal.  seed fixes the
// noise stream so tests are reproducible.
func New(cal *calibration.Calibration, seed int64) *Rig {
	return &Rig{cal: cal, rng: rand.New(rand.NewSource(seed))}
}

// Calls returns how many measurements have been taken.
func (r *Rig) Calls() int { return r.calls }

// MeasurePrimaries implements correction.Measurer.  The hardware clamps
// out-of-range drive values, so the input is truncated into gamut before
// the model is applied, like the real engine does.
func (r *Rig) MeasurePrimaries(primaries []float64) (correction.Measurement, error) {
	r.calls++
	if r.FailOnCall > 0 && r.calls == r.FailOnCall {
		return correction.Measurement{}, ErrInjectedFailure
	}
	clamped, _ := gamut.Truncate(primaries, r.cal.Mode)
	spd, err := r.cal.Predict(clamped)
	if err != nil {
		return correction.Measurement{}, err
	}
	droop := 1.0
	if r.Drift > 0 {
		for i := 0; i < r.calls-1; i++ {
			droop *= 1 - r.Drift
		}
	}
	for i := range spd {
		spd[i] *= droop
		if r.Noise > 0 {
			spd[i] += r.rng.NormFloat64() * r.Noise
		}
	}
	m := correction.Measurement{Spd: spd}
	if r.TemperatureC != 0 {
		m.TemperatureC = []float64{r.TemperatureC}
	}
	return m, nil
}
