package correction

import (
	"errors"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.NIterations != 20 {
		t.Errorf("default NIterations = %d, want 20", p.NIterations)
	}
	if p.LearningRate != 0.8 {
		t.Errorf("default LearningRate = %v, want 0.8", p.LearningRate)
	}
	if !p.LearningRateDecrease {
		t.Error("decay should default on")
	}
	if p.DecayFactor != 0.5 {
		t.Errorf("default DecayFactor = %v, want 0.5", p.DecayFactor)
	}
	if p.Smoothness != 1e-3 {
		t.Errorf("default Smoothness = %v, want 1e-3", p.Smoothness)
	}
	if !p.IterativeRefinement {
		t.Error("refinement should default on")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestParamsValidation(t *testing.T) {
	bad := []Params{
		{NIterations: 0, LearningRate: 0.8},
		{NIterations: 5, LearningRate: 0},
		{NIterations: 5, LearningRate: 1.5},
		{NIterations: 5, LearningRate: -0.1},
		{NIterations: 5, LearningRate: 0.8, LearningRateDecrease: true, DecayFactor: 1},
		{NIterations: 5, LearningRate: 0.8, LearningRateDecrease: true, DecayFactor: -0.5},
		{NIterations: 5, LearningRate: 0.8, Smoothness: -1},
	}
	for i, p := range bad {
		err := p.Validate()
		if err == nil {
			t.Errorf("case %d: invalid params accepted: %+v", i, p)
			continue
		}
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("case %d: expected ConfigurationError, got %T", i, err)
		}
	}
}

func TestRateSchedule(t *testing.T) {
	p := Params{NIterations: 5, LearningRate: 0.8, LearningRateDecrease: true, DecayFactor: 0.5}
	prev := p.RateAt(1)
	if prev != 0.8 {
		t.Fatalf("rate at iteration 1 = %v, want 0.8", prev)
	}
	for i := 2; i <= p.NIterations; i++ {
		r := p.RateAt(i)
		if r > prev {
			t.Errorf("rate increased at iteration %d: %v -> %v", i, prev, r)
		}
		if r <= 0 || r > 1 {
			t.Errorf("rate at iteration %d out of (0,1]: %v", i, r)
		}
		prev = r
	}
	if final := p.RateAt(p.NIterations); final != 0.8*(1-0.5) {
		t.Errorf("final rate = %v, want %v", final, 0.8*(1-0.5))
	}
}

func TestRateScheduleConstant(t *testing.T) {
	p := Params{NIterations: 5, LearningRate: 0.7}
	for i := 1; i <= 5; i++ {
		if r := p.RateAt(i); r != 0.7 {
			t.Errorf("rate at iteration %d = %v, want constant 0.7", i, r)
		}
	}
}

func TestRateScheduleSingleIteration(t *testing.T) {
	p := Params{NIterations: 1, LearningRate: 0.9, LearningRateDecrease: true, DecayFactor: 0.5}
	if r := p.RateAt(1); r != 0.9 {
		t.Errorf("single-iteration rate = %v, want 0.9", r)
	}
}
