/*Package modulation defines the parameter sets for the modulation
directions an experiment can ask the light engine to produce.

Each direction kind carries its own schema, validated once at construction
or load; dispatch is by the Kind tag, never by probing for field presence.
*/
package modulation

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrUnknownKind is generated when a file names a direction type this
// package does not define.
var ErrUnknownKind = errors.New("unknown modulation kind")

// Direction is a validated modulation parameter set.  The concrete types
// are Unipolar, Bipolar, LightFlux and BasicModulation.
type Direction interface {
	Kind() string
	Validate() error
}

// Unipolar is a single-arm modulation away from the background toward a
// receptor-isolating direction.
type Unipolar struct {
	// Name of the direction, e.g. "MelanopsinDirected"
	Name string `yaml:"name"`

	// TargetContrast per isolated receptor class, fractional
	TargetContrast float64 `yaml:"targetContrast"`

	// IsolateClasses names the receptor classes the direction modulates
	IsolateClasses []string `yaml:"isolate"`

	// SilenceClasses names the receptor classes held at zero contrast
	SilenceClasses []string `yaml:"silence"`

	// PrimaryHeadroom keeps primaries this far inside the gamut bounds
	PrimaryHeadroom float64 `yaml:"primaryHeadroom"`
}

func (u Unipolar) Kind() string { return "unipolar" }

func (u Unipolar) Validate() error {
	if u.TargetContrast <= 0 {
		return fmt.Errorf("unipolar %q: targetContrast must be > 0, got %v", u.Name, u.TargetContrast)
	}
	if len(u.IsolateClasses) == 0 {
		return fmt.Errorf("unipolar %q: no receptor classes to isolate", u.Name)
	}
	if u.PrimaryHeadroom < 0 || u.PrimaryHeadroom >= 0.5 {
		return fmt.Errorf("unipolar %q: primaryHeadroom %v out of [0, 0.5)", u.Name, u.PrimaryHeadroom)
	}
	return nil
}

// Bipolar is a symmetric two-arm modulation around the background.
type Bipolar struct {
	Name string `yaml:"name"`

	// ContrastScalar scales both arms, in (0, 1]
	ContrastScalar float64 `yaml:"contrastScalar"`

	IsolateClasses  []string `yaml:"isolate"`
	SilenceClasses  []string `yaml:"silence"`
	PrimaryHeadroom float64  `yaml:"primaryHeadroom"`
}

func (b Bipolar) Kind() string { return "bipolar" }

func (b Bipolar) Validate() error {
	if b.ContrastScalar <= 0 || b.ContrastScalar > 1 {
		return fmt.Errorf("bipolar %q: contrastScalar %v out of (0, 1]", b.Name, b.ContrastScalar)
	}
	if len(b.IsolateClasses) == 0 {
		return fmt.Errorf("bipolar %q: no receptor classes to isolate", b.Name)
	}
	if b.PrimaryHeadroom < 0 || b.PrimaryHeadroom >= 0.5 {
		return fmt.Errorf("bipolar %q: primaryHeadroom %v out of [0, 0.5)", b.Name, b.PrimaryHeadroom)
	}
	return nil
}

// LightFlux modulates overall light flux at fixed chromaticity.
type LightFlux struct {
	Name string `yaml:"name"`

	// ChromaticityX, ChromaticityY locate the background chromaticity
	ChromaticityX float64 `yaml:"x"`
	ChromaticityY float64 `yaml:"y"`

	// FluxFactor is the high/low flux ratio, > 1
	FluxFactor float64 `yaml:"fluxFactor"`
}

func (l LightFlux) Kind() string { return "lightflux" }

func (l LightFlux) Validate() error {
	if l.FluxFactor <= 1 {
		return fmt.Errorf("lightflux %q: fluxFactor must be > 1, got %v", l.Name, l.FluxFactor)
	}
	if l.ChromaticityX <= 0 || l.ChromaticityX >= 1 || l.ChromaticityY <= 0 || l.ChromaticityY >= 1 {
		return fmt.Errorf("lightflux %q: chromaticity (%v, %v) out of (0, 1)", l.Name, l.ChromaticityX, l.ChromaticityY)
	}
	return nil
}

// BasicModulation is a sinusoidal modulation of a named direction.
type BasicModulation struct {
	Name string `yaml:"name"`

	// Direction names the direction being modulated
	Direction string `yaml:"direction"`

	ContrastScalar float64 `yaml:"contrastScalar"`
	FrequencyHz    float64 `yaml:"frequencyHz"`
	PhaseDeg       float64 `yaml:"phaseDeg"`
}

func (m BasicModulation) Kind() string { return "basicmodulation" }

func (m BasicModulation) Validate() error {
	if m.Direction == "" {
		return fmt.Errorf("basicmodulation %q: no direction named", m.Name)
	}
	if m.ContrastScalar <= 0 || m.ContrastScalar > 1 {
		return fmt.Errorf("basicmodulation %q: contrastScalar %v out of (0, 1]", m.Name, m.ContrastScalar)
	}
	if m.FrequencyHz <= 0 {
		return fmt.Errorf("basicmodulation %q: frequencyHz must be > 0, got %v", m.Name, m.FrequencyHz)
	}
	return nil
}

// file is the on-disk yaml schema: a type tag plus one populated section.
type file struct {
	Type            string           `yaml:"type"`
	Unipolar        *Unipolar        `yaml:"unipolar,omitempty"`
	Bipolar         *Bipolar         `yaml:"bipolar,omitempty"`
	LightFlux       *LightFlux       `yaml:"lightflux,omitempty"`
	BasicModulation *BasicModulation `yaml:"basicmodulation,omitempty"`
}

// Load reads and validates a direction from a yaml file.
func Load(path string) (Direction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (Direction, error) {
	ff := file{}
	if err := yaml.NewDecoder(r).Decode(&ff); err != nil {
		return nil, err
	}
	var d Direction
	switch ff.Type {
	case "unipolar":
		if ff.Unipolar == nil {
			return nil, errors.New("modulation: unipolar section missing")
		}
		d = *ff.Unipolar
	case "bipolar":
		if ff.Bipolar == nil {
			return nil, errors.New("modulation: bipolar section missing")
		}
		d = *ff.Bipolar
	case "lightflux":
		if ff.LightFlux == nil {
			return nil, errors.New("modulation: lightflux section missing")
		}
		d = *ff.LightFlux
	case "basicmodulation":
		if ff.BasicModulation == nil {
			return nil, errors.New("modulation: basicmodulation section missing")
		}
		d = *ff.BasicModulation
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ff.Type)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Save writes a direction to a yaml file readable by Load.
func Save(path string, d Direction) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ff := file{Type: d.Kind()}
	switch v := d.(type) {
	case Unipolar:
		ff.Unipolar = &v
	case Bipolar:
		ff.Bipolar = &v
	case LightFlux:
		ff.LightFlux = &v
	case BasicModulation:
		ff.BasicModulation = &v
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, d)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewEncoder(f).Encode(ff)
}
