package calibration

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/visionlab/onelight/gamut"
)

func identityCal(t *testing.T, n int) *Calibration {
	t.Helper()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	c, err := New(Description{Device: "test"}, rows, make([]float64, n),
		Sampling{Start: 380, Step: 2, Count: n}, gamut.Unipolar, 1)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewRejectsRaggedBasis(t *testing.T) {
	rows := [][]float64{{1, 0}, {0}}
	_, err := New(Description{}, rows, []float64{0, 0}, Sampling{Start: 380, Step: 2, Count: 2}, gamut.Unipolar, 1)
	if !errors.Is(err, ErrBadCalibration) {
		t.Fatalf("expected ErrBadCalibration, got %v", err)
	}
}

func TestNewRejectsDarkMismatch(t *testing.T) {
	rows := [][]float64{{1, 0}, {0, 1}}
	_, err := New(Description{}, rows, []float64{0}, Sampling{Start: 380, Step: 2, Count: 2}, gamut.Unipolar, 1)
	if !errors.Is(err, ErrBadCalibration) {
		t.Fatalf("expected ErrBadCalibration, got %v", err)
	}
}

func TestNewRejectsSamplingMismatch(t *testing.T) {
	rows := [][]float64{{1, 0}, {0, 1}}
	_, err := New(Description{}, rows, []float64{0, 0}, Sampling{Start: 380, Step: 2, Count: 5}, gamut.Unipolar, 1)
	if !errors.Is(err, ErrBadCalibration) {
		t.Fatalf("expected ErrBadCalibration, got %v", err)
	}
}

func TestWavelengths(t *testing.T) {
	s := Sampling{Start: 380, Step: 4, Count: 3}
	wl := s.Wavelengths()
	want := []float64{380, 384, 388}
	for i := range want {
		if wl[i] != want[i] {
			t.Errorf("sample %d: expected %v got %v", i, want[i], wl[i])
		}
	}
}

func TestPredictIdentity(t *testing.T) {
	c := identityCal(t, 3)
	spd, err := c.Predict([]float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0.2, 0.3}
	for i := range want {
		if math.Abs(spd[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %v got %v", i, want[i], spd[i])
		}
	}
}

func TestPredictDarkOffset(t *testing.T) {
	rows := [][]float64{{1, 0}, {0, 1}}
	c, err := New(Description{}, rows, []float64{0.05, 0.07},
		Sampling{Start: 380, Step: 2, Count: 2}, gamut.Unipolar, 1)
	if err != nil {
		t.Fatal(err)
	}
	spd, err := c.Predict([]float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if spd[0] != 0.05 || spd[1] != 0.07 {
		t.Fatalf("dark prediction wrong: %v", spd)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	c := identityCal(t, 3)
	_, err := c.Predict([]float64{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPrimariesForRoundTrip(t *testing.T) {
	c := identityCal(t, 4)
	target := []float64{0.5, 0.5, 0.5, 0.5}
	p, err := c.PrimariesFor(target, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range target {
		if math.Abs(p[i]-0.5) > 1e-8 {
			t.Errorf("primary %d: expected 0.5 got %v", i, p[i])
		}
	}
	if !gamut.InGamut(p, gamut.Unipolar) {
		t.Error("inverted primaries out of gamut")
	}
}

func TestPrimariesForDimensionMismatch(t *testing.T) {
	c := identityCal(t, 3)
	_, err := c.PrimariesFor([]float64{1, 2}, 0)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPredictTruncated(t *testing.T) {
	c := identityCal(t, 2)
	spd, truncated, err := c.PredictTruncated([]float64{1.5, -0.5})
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Error("out-of-gamut input not flagged")
	}
	if spd[0] != 1 || spd[1] != 0 {
		t.Errorf("expected clamped prediction [1 0], got %v", spd)
	}
}

func TestYamlRoundTrip(t *testing.T) {
	c := identityCal(t, 3)
	c.Describe = Description{Device: "OneLight-A", Date: "2024-03-01", Radiometer: "PR-670"}
	path := filepath.Join(t.TempDir(), "cal.yaml")
	if err := c.SaveYaml(path); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadYaml(path)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Describe.Device != "OneLight-A" || c2.Describe.Radiometer != "PR-670" {
		t.Errorf("description did not survive: %+v", c2.Describe)
	}
	if c2.NPrimaries() != 3 || c2.NSamples() != 3 {
		t.Errorf("dimensions did not survive: %d x %d", c2.NSamples(), c2.NPrimaries())
	}
	spd, err := c2.Predict([]float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(spd[1]-0.2) > 1e-12 {
		t.Errorf("loaded model predicts wrong: %v", spd)
	}
}
