// Package gamut is the single source of truth for clamping primary vectors
// into the light engine's gamut.  Every code path that needs to know whether
// a vector is "in gamut" goes through this package so that the estimators
// and the correction loop can never disagree about what that means.
package gamut

// Mode selects the bounds on primary values.
type Mode int

const (
	// Unipolar primaries are fractions of full-on drive, [0, 1].
	Unipolar Mode = iota

	// Bipolar primaries are differential against a background, [-1, 1].
	Bipolar
)

func (m Mode) String() string {
	switch m {
	case Unipolar:
		return "unipolar"
	case Bipolar:
		return "bipolar"
	default:
		return "unknown"
	}
}

// Bounds returns the lower and upper limits for a single primary value.
func (m Mode) Bounds() (lo, hi float64) {
	if m == Bipolar {
		return -1, 1
	}
	return 0, 1
}

// Truncate clamps each element of primaries into the mode's bounds.  The
// input is not modified; a fresh slice is returned along with a flag
// indicating whether any element was moved.
func Truncate(primaries []float64, mode Mode) ([]float64, bool) {
	lo, hi := mode.Bounds()
	out := make([]float64, len(primaries))
	truncated := false
	for i, v := range primaries {
		switch {
		case v < lo:
			out[i] = lo
			truncated = true
		case v > hi:
			out[i] = hi
			truncated = true
		default:
			out[i] = v
		}
	}
	return out, truncated
}

// InGamut reports whether every element of primaries is within the mode's
// bounds.
func InGamut(primaries []float64, mode Mode) bool {
	lo, hi := mode.Bounds()
	for _, v := range primaries {
		if v < lo || v > hi {
			return false
		}
	}
	return true
}
