/*Package calibration holds the immutable calibration record for a OneLight
light engine and the linear device model built on it.

A Calibration maps primary (mirror-column group) drive values to a predicted
spectral power distribution through the primary basis matrix measured by the
calibration procedure, plus the dark/ambient offset spectrum the device emits
at zero drive.  The record is validated once at construction; after that the
estimators and the correction loop treat it as read-only shared state.
*/
package calibration

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"

	"github.com/visionlab/onelight/gamut"
)

var (
	// ErrDimensionMismatch is generated when a vector handed to the device
	// model does not match the calibration's dimensions.
	ErrDimensionMismatch = errors.New("vector length does not match calibration dimensions")

	// ErrBadCalibration is generated when a calibration record fails its
	// construction-time schema check.
	ErrBadCalibration = errors.New("calibration record is malformed")
)

// Sampling describes the wavelength axis of every spectrum in a calibration.
type Sampling struct {
	// Start is the first wavelength sample, nm
	Start float64 `yaml:"start"`

	// Step is the sample spacing, nm
	Step float64 `yaml:"step"`

	// Count is the number of samples
	Count int `yaml:"count"`
}

// Wavelengths expands the sampling description into the full axis.
func (s Sampling) Wavelengths() []float64 {
	out := make([]float64, s.Count)
	for i := range out {
		out[i] = s.Start + float64(i)*s.Step
	}
	return out
}

// Calibration is the immutable record produced by the calibration procedure.
type Calibration struct {
	// Describe identifies the device and calibration session
	Describe Description

	// Sampling is the wavelength axis shared by all spectra
	Sampling Sampling

	// Mode selects the gamut bounds primaries live in
	Mode gamut.Mode

	// ScaleFactor is the wavelength-calibration scale applied to measured
	// spectra before comparison against targets, 1 when unused
	ScaleFactor float64

	basis *mat.Dense // W x P primary basis
	dark  []float64  // length W dark/ambient offset
}

// Description carries device metadata, advisory only.
type Description struct {
	Device     string `yaml:"device"`
	Date       string `yaml:"date"`
	Radiometer string `yaml:"radiometer"`
}

// New builds a Calibration from a W x P basis given as W rows, the length-W
// dark offset, the sampling description and the gamut mode.  The schema is
// checked here, once; errors wrap ErrBadCalibration.
func New(desc Description, basisRows [][]float64, dark []float64, s Sampling, mode gamut.Mode, scale float64) (*Calibration, error) {
	w := len(basisRows)
	if w == 0 {
		return nil, fmt.Errorf("%w: empty basis", ErrBadCalibration)
	}
	p := len(basisRows[0])
	if p == 0 {
		return nil, fmt.Errorf("%w: basis has zero primaries", ErrBadCalibration)
	}
	data := make([]float64, 0, w*p)
	for i, row := range basisRows {
		if len(row) != p {
			return nil, fmt.Errorf("%w: basis row %d has length %d, want %d", ErrBadCalibration, i, len(row), p)
		}
		data = append(data, row...)
	}
	if len(dark) != w {
		return nil, fmt.Errorf("%w: dark offset has length %d, basis has %d rows", ErrBadCalibration, len(dark), w)
	}
	if s.Count != w {
		return nil, fmt.Errorf("%w: sampling count %d does not match basis rows %d", ErrBadCalibration, s.Count, w)
	}
	if s.Step <= 0 {
		return nil, fmt.Errorf("%w: sampling step %v is not positive", ErrBadCalibration, s.Step)
	}
	if scale == 0 {
		scale = 1
	}
	darkCopy := make([]float64, w)
	copy(darkCopy, dark)
	return &Calibration{
		Describe:    desc,
		Sampling:    s,
		Mode:        mode,
		ScaleFactor: scale,
		basis:       mat.NewDense(w, p, data),
		dark:        darkCopy}, nil
}

// NPrimaries returns P, the number of effective primaries.
func (c *Calibration) NPrimaries() int {
	_, p := c.basis.Dims()
	return p
}

// NSamples returns W, the number of wavelength samples.
func (c *Calibration) NSamples() int {
	w, _ := c.basis.Dims()
	return w
}

// Basis returns the W x P primary basis.  Callers must not modify it.
func (c *Calibration) Basis() mat.Matrix {
	return c.basis
}

// DarkOffset returns a copy of the dark/ambient offset spectrum.
func (c *Calibration) DarkOffset() []float64 {
	out := make([]float64, len(c.dark))
	copy(out, c.dark)
	return out
}

// calFile is the on-disk yaml schema.
type calFile struct {
	Describe    Description `yaml:"describe"`
	Sampling    Sampling    `yaml:"sampling"`
	Mode        string      `yaml:"mode"`
	ScaleFactor float64     `yaml:"scaleFactor"`
	Basis       [][]float64 `yaml:"basis"`
	Dark        []float64   `yaml:"dark"`
}

// LoadYaml reads a calibration record from a yaml file and validates it.
func LoadYaml(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cf := calFile{}
	if err := yaml.NewDecoder(f).Decode(&cf); err != nil {
		return nil, err
	}
	mode := gamut.Unipolar
	switch cf.Mode {
	case "", "unipolar":
	case "bipolar":
		mode = gamut.Bipolar
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrBadCalibration, cf.Mode)
	}
	return New(cf.Describe, cf.Basis, cf.Dark, cf.Sampling, mode, cf.ScaleFactor)
}

// SaveYaml writes the record to a yaml file readable by LoadYaml.
func (c *Calibration) SaveYaml(path string) error {
	w, p := c.basis.Dims()
	rows := make([][]float64, w)
	for i := 0; i < w; i++ {
		rows[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			rows[i][j] = c.basis.At(i, j)
		}
	}
	cf := calFile{
		Describe:    c.Describe,
		Sampling:    c.Sampling,
		Mode:        c.Mode.String(),
		ScaleFactor: c.ScaleFactor,
		Basis:       rows,
		Dark:        c.DarkOffset()}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewEncoder(f).Encode(cf)
}
