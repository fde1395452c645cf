package correction

// A Measurement is the result of driving the light engine with a primary
// vector and reading the spectroradiometer.
type Measurement struct {
	// Spd is the measured spectral power distribution, length W
	Spd []float64

	// TemperatureC is an advisory device-temperature reading in Celsius,
	// recorded verbatim in the trace; nil when the rig has no probe
	TemperatureC []float64
}

// Measurer is the hardware collaborator: it drives the mirrors to the given
// primaries and takes a radiometer measurement.  Calls block for the real
// measurement latency and must return an error on any instrument failure;
// the correction core never fabricates a measurement.
type Measurer interface {
	MeasurePrimaries(primaries []float64) (Measurement, error)
}

// MeasurerFunc adapts a plain function to the Measurer interface, which is
// how tests substitute a pure-function stand-in for hardware.
type MeasurerFunc func(primaries []float64) (Measurement, error)

// MeasurePrimaries implements Measurer.
func (f MeasurerFunc) MeasurePrimaries(primaries []float64) (Measurement, error) {
	return f(primaries)
}
