/*Package pr670 talks to a Photo Research PR-670 spectroradiometer over
RS-232 and adapts it, together with a light engine, to the correction
core's Measurer interface.

Only the subset of the instrument needed for correction runs is covered:
enter remote mode, configure exposure, take a spectral measurement.  The
instrument is slow (multi-second integration) and dislikes connection
thrashing, so Open retries with exponential backoff the way the rest of
our serial devices do.
*/
package pr670

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.com/visionlab/onelight/correction"
)

var (
	terminator = byte('\n')

	// ErrQualification is generated when the instrument reports a nonzero
	// measurement quality code.
	ErrQualification = errors.New("instrument reported measurement error")

	// ErrShortResponse is generated when the spectrum block has fewer
	// lines than expected.
	ErrShortResponse = errors.New("truncated spectrum response")
)

func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 30 * time.Second} // integration can take this long
}

// Radiometer is a PR-670 on a serial port.
type Radiometer struct {
	conn *serial.Port

	// NSamples is the number of wavelength samples the instrument is
	// configured to report
	NSamples int
}

// New opens the port and puts the instrument in remote mode.  The open is
// retried with exponential backoff; the instrument needs a moment after
// power-up before it will accept a connection.
func New(addr string, nSamples int) (*Radiometer, error) {
	r := &Radiometer{NSamples: nSamples}
	op := func() error {
		conn, err := serial.OpenPort(makeSerConf(addr))
		if err != nil {
			return err
		}
		r.conn = conn
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, err
	}
	// "PHOTO" switches the instrument from local to remote mode
	if err := r.send("PHOTO"); err != nil {
		r.conn.Close()
		return nil, err
	}
	return r, nil
}

// Close returns the instrument to local mode and closes the port.
func (r *Radiometer) Close() error {
	// best effort, the Q command exits remote mode
	r.send("Q")
	return r.conn.Close()
}

// SetExposure sets the integration time in ms; 0 selects adaptive.
func (r *Radiometer) SetExposure(ms int) error {
	return r.send(fmt.Sprintf("SE%d", ms))
}

func (r *Radiometer) send(cmd string) error {
	_, err := r.conn.Write(append([]byte(cmd), terminator))
	return err
}

// Measure takes a spectral measurement (M5) and returns the SPD.
func (r *Radiometer) Measure() ([]float64, error) {
	if err := r.send("M5"); err != nil {
		return nil, err
	}
	reader := bufio.NewReader(r.conn)
	lines := make([]string, 0, r.NSamples+1)
	for len(lines) < r.NSamples+1 {
		raw, err := reader.ReadBytes(terminator)
		if err != nil {
			return nil, err
		}
		lines = append(lines, strings.TrimSpace(string(raw)))
	}
	return parseSpectrum(lines, r.NSamples)
}

// parseSpectrum decodes an M5 response: a quality code line, then one
// "wavelength,power" line per sample.
func parseSpectrum(lines []string, nSamples int) ([]float64, error) {
	if len(lines) < nSamples+1 {
		return nil, fmt.Errorf("%w: got %d lines, want %d", ErrShortResponse, len(lines), nSamples+1)
	}
	qual, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, fmt.Errorf("bad quality code %q: %w", lines[0], err)
	}
	if qual != 0 {
		return nil, fmt.Errorf("%w: code %d", ErrQualification, qual)
	}
	out := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		fields := strings.Split(lines[i+1], ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed sample line %q", lines[i+1])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad power in %q: %w", lines[i+1], err)
		}
		out[i] = v
	}
	return out, nil
}

// PrimarySetter drives the light engine's mirrors; implemented by the
// engine driver, out of this package's hands.
type PrimarySetter interface {
	SetPrimaries(primaries []float64) error
}

// Bench couples a light engine and a radiometer into the correction core's
// Measurer: drive the mirrors, wait for the engine to settle, measure.
type Bench struct {
	Engine     PrimarySetter
	Meter      *Radiometer
	SettleTime time.Duration
}

// MeasurePrimaries implements correction.Measurer.
func (b *Bench) MeasurePrimaries(primaries []float64) (correction.Measurement, error) {
	if err := b.Engine.SetPrimaries(primaries); err != nil {
		return correction.Measurement{}, err
	}
	if b.SettleTime > 0 {
		time.Sleep(b.SettleTime)
	}
	spd, err := b.Meter.Measure()
	if err != nil {
		return correction.Measurement{}, err
	}
	return correction.Measurement{Spd: spd}, nil
}
