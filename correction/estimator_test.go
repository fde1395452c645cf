package correction

import (
	"errors"
	"math"
	"testing"

	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/gamut"
)

// identityCal builds an n-primary calibration whose basis is the identity,
// so primaries and SPD samples coincide.
func identityCal(t *testing.T, n int) *calibration.Calibration {
	t.Helper()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	c, err := calibration.New(calibration.Description{Device: "sim"}, rows, make([]float64, n),
		calibration.Sampling{Start: 380, Step: 2, Count: n}, gamut.Unipolar, 1)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestComputeDeltaFullStep(t *testing.T) {
	cal := identityCal(t, 4)
	used := []float64{0.2, 0.2, 0.2, 0.2}
	measured := []float64{0.2, 0.2, 0.2, 0.2}
	target := []float64{0.6, 0.6, 0.6, 0.6}
	// flat delta pays no smoothness penalty, so the full step is exact
	delta, err := ComputeDelta(used, measured, target, 1, 1e-3, cal)
	if err != nil {
		t.Fatal(err)
	}
	for i := range delta {
		if math.Abs(delta[i]-0.4) > 1e-8 {
			t.Errorf("delta[%d] = %v, want 0.4", i, delta[i])
		}
	}
}

func TestComputeDeltaLearningRateDamping(t *testing.T) {
	cal := identityCal(t, 4)
	used := []float64{0.2, 0.2, 0.2, 0.2}
	measured := []float64{0.2, 0.2, 0.2, 0.2}
	target := []float64{0.6, 0.6, 0.6, 0.6}
	half, err := ComputeDelta(used, measured, target, 0.5, 0, cal)
	if err != nil {
		t.Fatal(err)
	}
	for i := range half {
		if math.Abs(half[i]-0.2) > 1e-8 {
			t.Errorf("damped delta[%d] = %v, want 0.2", i, half[i])
		}
	}
}

func TestComputeDeltaFeasibleAtSaturation(t *testing.T) {
	cal := identityCal(t, 3)
	// first primary saturated high, target pushes it further up: the box
	// constraint must keep the delta feasible
	used := []float64{1, 0.5, 0.5}
	measured := []float64{1, 0.5, 0.5}
	target := []float64{1.4, 0.9, 0.9}
	delta, err := ComputeDelta(used, measured, target, 1, 0, cal)
	if err != nil {
		t.Fatal(err)
	}
	next := make([]float64, 3)
	for i := range next {
		next[i] = used[i] + delta[i]
	}
	if !gamut.InGamut(next, gamut.Unipolar) {
		t.Fatalf("delta %v leaves gamut from %v", delta, used)
	}
	if delta[0] > 1e-12 {
		t.Errorf("saturated primary moved up: delta[0] = %v", delta[0])
	}
}

func TestComputeDeltaBadInputs(t *testing.T) {
	cal := identityCal(t, 3)
	ok := []float64{0.5, 0.5, 0.5}
	cases := []struct {
		used, measured, target []float64
		rate                   float64
	}{
		{[]float64{0.5}, ok, ok, 1},
		{ok, []float64{0.5}, ok, 1},
		{ok, ok, []float64{0.5}, 1},
		{ok, ok, ok, 0},
		{ok, ok, ok, 1.2},
	}
	for i, c := range cases {
		_, err := ComputeDelta(c.used, c.measured, c.target, c.rate, 0, cal)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("case %d: expected ConfigurationError, got %v", i, err)
		}
	}
}

func TestRefineDeltaStaysFeasible(t *testing.T) {
	cal := identityCal(t, 3)
	used := []float64{0.9, 0.1, 0.5}
	measured, err := cal.Predict(used)
	if err != nil {
		t.Fatal(err)
	}
	target := []float64{1.3, -0.2, 0.5}
	warm, err := ComputeDelta(used, measured, target, 1, 1e-3, cal)
	if err != nil {
		t.Fatal(err)
	}
	delta, predicted, _, err := RefineDelta(warm, used, measured, target, 1, cal)
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
	want, _, err := cal.PredictTruncated(next)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if math.Abs(predicted[i]-want[i]) > 1e-12 {
			t.Errorf("predicted SPD inconsistent at %d: %v vs %v", i, predicted[i], want[i])
		}
	}
}

func TestRefineDeltaColdStart(t *testing.T) {
	cal := identityCal(t, 3)
	used := []float64{0.3, 0.3, 0.3}
	measured, err := cal.Predict(used)
	if err != nil {
		t.Fatal(err)
	}
	target := []float64{0.5, 0.5, 0.5}
	delta, _, _, err := RefineDelta(nil, used, measured, target, 1, cal)
	if err != nil {
		t.Fatal(err)
	}
	for i := range delta {
		if math.Abs(delta[i]-0.2) > 1e-4 {
			t.Errorf("cold-start delta[%d] = %v, want ~0.2", i, delta[i])
		}
	}
}

func TestRefineDeltaBadWarmStart(t *testing.T) {
	cal := identityCal(t, 3)
	used := []float64{0.3, 0.3, 0.3}
	_, _, _, err := RefineDelta([]float64{0, 0}, used, used, used, 1, cal)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
