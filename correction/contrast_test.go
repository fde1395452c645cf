package correction

import (
	"errors"
	"math"
	"testing"

	"github.com/visionlab/onelight/gamut"
	"github.com/visionlab/onelight/receptors"
)

func TestComputeContrastDeltaSimple(t *testing.T) {
	cal := identityCal(t, 3)
	rcpt, err := receptors.New(nil, [][]float64{{1, 1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	background := []float64{0.5, 0.5, 0.5}
	measured := []float64{0.5, 0.5, 0.5} // zero contrast
	delta, err := ComputeContrastDelta([]float64{0.5, 0.5, 0.5}, []float64{0.2}, measured, background, rcpt, 1, 1e-3, cal)
	if err != nil {
		t.Fatal(err)
	}
	// whatever the distribution across primaries, the summed excitation
	// change must produce contrast 0.2
	sum := 0.0
	for _, d := range delta {
		sum += d
	}
	if math.Abs(sum/1.5-0.2) > 1e-6 {
		t.Errorf("delta %v yields contrast %v, want 0.2", delta, sum/1.5)
	}
}

func TestComputeContrastDeltaZeroBackground(t *testing.T) {
	cal := identityCal(t, 2)
	rcpt, err := receptors.New(nil, [][]float64{{1, -1}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = ComputeContrastDelta([]float64{0.5, 0.5}, []float64{0.1}, []float64{0.5, 0.5}, []float64{0.5, 0.5}, rcpt, 1, 0, cal)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, receptors.ErrZeroBackground) {
		t.Errorf("cause should be ErrZeroBackground, got %v", err)
	}
}

func TestComputeContrastDeltaDimChecks(t *testing.T) {
	cal := identityCal(t, 3)
	rcpt, err := receptors.New(nil, [][]float64{{1, 1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	bg := []float64{0.5, 0.5, 0.5}
	cases := []struct {
		used, targets, measured []float64
	}{
		{[]float64{0.5}, []float64{0.2}, bg},
		{bg, []float64{0.2, 0.3}, bg},
		{bg, []float64{0.2}, []float64{0.5}},
	}
	for i, c := range cases {
		_, err := ComputeContrastDelta(c.used, c.targets, c.measured, bg, rcpt, 1, 0, cal)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("case %d: expected ConfigurationError, got %v", i, err)
		}
	}
}

func TestRefineContrastDeltaFeasible(t *testing.T) {
	cal := identityCal(t, 3)
	rcpt, err := receptors.New(nil, [][]float64{{1, 1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	used := []float64{0.9, 0.9, 0.9}
	background := []float64{0.5, 0.5, 0.5}
	measured, err := cal.Predict(used)
	if err != nil {
		t.Fatal(err)
	}
	// large positive contrast from a nearly saturated point
	delta, predicted, _, err := RefineContrastDelta(nil, used, []float64{1.0}, measured, background, rcpt, 1, cal)
	if err != nil {
		t.Fatal(err)
	}
	next := make([]float64, 3)
	for i := range next {
		next[i] = used[i] + delta[i]
	}
	if !gamut.InGamut(next, gamut.Unipolar) {
		t.Fatalf("refined delta %v leaves gamut from %v", delta, used)
	}
	if len(predicted) != 1 {
		t.Fatalf("predicted contrasts have length %d, want 1", len(predicted))
	}
}
