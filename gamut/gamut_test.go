package gamut

import "testing"

func TestTruncateUnipolar(t *testing.T) {
	in := []float64{-0.25, 0, 0.5, 1, 1.75}
	out, trunc := Truncate(in, Unipolar)
	if !trunc {
		t.Fatal("expected truncation to be flagged")
	}
	want := []float64{0, 0, 0.5, 1, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("element %d: expected %v got %v", i, want[i], out[i])
		}
	}
	if in[0] != -0.25 || in[4] != 1.75 {
		t.Error("input slice was modified")
	}
}

func TestTruncateBipolar(t *testing.T) {
	in := []float64{-1.5, -1, 0.25, 1.5}
	out, trunc := Truncate(in, Bipolar)
	if !trunc {
		t.Fatal("expected truncation to be flagged")
	}
	want := []float64{-1, -1, 0.25, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("element %d: expected %v got %v", i, want[i], out[i])
		}
	}
}

func TestTruncateNoOp(t *testing.T) {
	in := []float64{0, 0.5, 1}
	out, trunc := Truncate(in, Unipolar)
	if trunc {
		t.Fatal("in-gamut vector should not be flagged")
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("element %d changed: %v -> %v", i, in[i], out[i])
		}
	}
}

func TestInGamut(t *testing.T) {
	if !InGamut([]float64{0, 1, 0.3}, Unipolar) {
		t.Error("in-bounds unipolar vector reported out of gamut")
	}
	if InGamut([]float64{0, 1.0000001}, Unipolar) {
		t.Error("out-of-bounds unipolar vector reported in gamut")
	}
	if !InGamut([]float64{-1, 1}, Bipolar) {
		t.Error("in-bounds bipolar vector reported out of gamut")
	}
	if InGamut([]float64{-1.1}, Bipolar) {
		t.Error("out-of-bounds bipolar vector reported in gamut")
	}
}
