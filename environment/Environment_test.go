package environment

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/kiwi-sherbet/loco-mujoco/timestep"
)

func TestUniformStarter(t *testing.T) {
	starter := NewUniformStarter([]r1.Interval{
		{Min: -1, Max: 1},
		{Min: 2, Max: 3},
	}, 17)

	for i := 0; i < 50; i++ {
		start := starter.Start()
		if start.Len() != 2 {
			t.Fatalf("got start vector of length %v, want 2", start.Len())
		}
		if start.AtVec(0) < -1 || start.AtVec(0) > 1 {
			t.Errorf("dimension 0 out of bounds: %v", start.AtVec(0))
		}
		if start.AtVec(1) < 2 || start.AtVec(1) > 3 {
			t.Errorf("dimension 1 out of bounds: %v", start.AtVec(1))
		}
	}
}

func TestStepLimit(t *testing.T) {
	ender := NewStepLimit(3)

	step := timestep.New(timestep.Mid, 0, 0.99, mat.NewVecDense(1, nil), 2)
	if ender.End(&step) {
		t.Error("episode ended before the step limit")
	}

	step = timestep.New(timestep.Mid, 0, 0.99, mat.NewVecDense(1, nil), 3)
	if !ender.End(&step) {
		t.Fatal("episode should end at the step limit")
	}
	if !step.Last() || step.EndType != timestep.Timeout {
		t.Error("step limit should mark the timestep Last with Timeout")
	}
}

func TestFunctionEnder(t *testing.T) {
	fallen := false
	ender := NewFunctionEnder(func(*mat.VecDense) bool { return fallen },
		timestep.TerminalStateReached)

	step := timestep.New(timestep.Mid, 0, 0.99, mat.NewVecDense(1, nil), 1)
	if ender.End(&step) {
		t.Error("episode ended while the predicate is false")
	}

	fallen = true
	if !ender.End(&step) {
		t.Fatal("episode should end when the predicate fires")
	}
	if !step.Last() || step.EndType != timestep.TerminalStateReached {
		t.Error("ender should mark the timestep Last with " +
			"TerminalStateReached")
	}
}

func TestNewSpecPanicsOnBoundMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for bound length mismatch")
		}
	}()
	NewSpec(mat.NewVecDense(2, nil), Observation,
		mat.NewVecDense(1, nil), mat.NewVecDense(2, nil), Continuous)
}
