/*Package receptors computes photoreceptor excitations and contrasts from
spectral power distributions.

A Sensitivities value wraps the R x W receptor sensitivity matrix (R
photoreceptor classes by W wavelength samples).  Contrast for a receptor
class is the fractional change of its excitation relative to a background:

	contrast_r = (T·spd - T·background)_r / (T·background)_r

which is undefined when the background excitation of any class is zero, so
that condition is rejected up front rather than surfacing as an Inf deep in
a correction run.
*/
package receptors

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// backgrounds with excitation magnitude below this are treated as zero
const zeroExcitationTol = 1e-12

var (
	// ErrZeroBackground is generated when a background SPD produces ~zero
	// excitation for some receptor class, making contrast undefined.
	ErrZeroBackground = errors.New("background excitation is zero for a receptor class")

	// ErrDimensionMismatch is generated when an SPD does not match the
	// sensitivity matrix width.
	ErrDimensionMismatch = errors.New("SPD length does not match sensitivity matrix")
)

// Sensitivities is an immutable receptor sensitivity matrix with class names.
type Sensitivities struct {
	names []string
	t     *mat.Dense // R x W
}

// New builds a Sensitivities from R rows of length W.  names may be nil;
// when present it must have one entry per row.
func New(names []string, rows [][]float64) (*Sensitivities, error) {
	r := len(rows)
	if r == 0 {
		return nil, errors.New("receptors: no sensitivity rows")
	}
	w := len(rows[0])
	data := make([]float64, 0, r*w)
	for i, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("receptors: row %d has length %d, want %d", i, len(row), w)
		}
		data = append(data, row...)
	}
	if names != nil && len(names) != r {
		return nil, fmt.Errorf("receptors: %d names for %d rows", len(names), r)
	}
	if names == nil {
		names = make([]string, r)
		for i := range names {
			names[i] = fmt.Sprintf("class%d", i)
		}
	}
	return &Sensitivities{names: names, t: mat.NewDense(r, w, data)}, nil
}

// NClasses returns R, the number of receptor classes.
func (s *Sensitivities) NClasses() int {
	r, _ := s.t.Dims()
	return r
}

// NSamples returns W, the number of wavelength samples.
func (s *Sensitivities) NSamples() int {
	_, w := s.t.Dims()
	return w
}

// Names returns the receptor class names, in row order.
func (s *Sensitivities) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Matrix returns the R x W sensitivity matrix.  Callers must not modify it.
func (s *Sensitivities) Matrix() mat.Matrix {
	return s.t
}

// Excitations returns T·spd, the excitation of each receptor class.
func (s *Sensitivities) Excitations(spd []float64) ([]float64, error) {
	r, w := s.t.Dims()
	if len(spd) != w {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrDimensionMismatch, len(spd), w)
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < w; j++ {
			sum += s.t.At(i, j) * spd[j]
		}
		out[i] = sum
	}
	return out, nil
}

// CheckBackground verifies that the background SPD excites every receptor
// class away from zero.  It returns the background excitations on success
// and ErrZeroBackground otherwise.
func (s *Sensitivities) CheckBackground(background []float64) ([]float64, error) {
	exc, err := s.Excitations(background)
	if err != nil {
		return nil, err
	}
	for i, e := range exc {
		if math.Abs(e) < zeroExcitationTol {
			return nil, fmt.Errorf("%w: %s", ErrZeroBackground, s.names[i])
		}
	}
	return exc, nil
}

// Contrasts returns the fractional excitation change of spd relative to
// background, per receptor class.
func (s *Sensitivities) Contrasts(spd, background []float64) ([]float64, error) {
	bg, err := s.CheckBackground(background)
	if err != nil {
		return nil, err
	}
	exc, err := s.Excitations(spd)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(exc))
	for i := range exc {
		out[i] = (exc[i] - bg[i]) / bg[i]
	}
	return out, nil
}
