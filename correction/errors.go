package correction

import "fmt"

// ConfigurationError indicates invalid inputs: dimension mismatches,
// out-of-range parameters, zero background excitation in contrast mode.
// It is always surfaced before any hardware interaction.
type ConfigurationError struct {
	Problem string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Problem, e.Err)
	}
	return "configuration error: " + e.Problem
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(problem string, err error) error {
	return &ConfigurationError{Problem: problem, Err: err}
}

func configErrf(format string, args ...interface{}) error {
	return &ConfigurationError{Problem: fmt.Sprintf(format, args...)}
}

// MeasurementError indicates the radiometer or light engine failed during a
// correction run.  The run is fatal and never retried here; the partial
// trace is returned alongside.
type MeasurementError struct {
	Iteration int
	Err       error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("measurement failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *MeasurementError) Unwrap() error { return e.Err }

// InvariantViolationError indicates internal state corruption, a bug.  It
// must never be caught and suppressed.
type InvariantViolationError struct {
	Iteration int
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated at iteration %d: %s", e.Iteration, e.Detail)
}
