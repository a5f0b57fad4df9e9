package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStepTypePredicates(t *testing.T) {
	first := New(First, 0, 0.99, mat.NewVecDense(1, nil), 0)
	if !first.First() || first.Mid() || first.Last() {
		t.Error("first timestep misclassified")
	}

	mid := New(Mid, 1, 0.99, mat.NewVecDense(1, nil), 1)
	if mid.First() || !mid.Mid() || mid.Last() {
		t.Error("mid timestep misclassified")
	}

	last := New(Last, 1, 0.99, mat.NewVecDense(1, nil), 2)
	if last.First() || last.Mid() || !last.Last() {
		t.Error("last timestep misclassified")
	}
}

func TestSetEnd(t *testing.T) {
	step := New(Mid, 1, 0.99, mat.NewVecDense(1, nil), 3)
	if step.EndType != Nil {
		t.Errorf("got end type %v on a fresh timestep, want Nil",
			step.EndType)
	}

	step.SetEnd(Timeout)
	if step.EndType != Timeout {
		t.Errorf("got end type %v, want Timeout", step.EndType)
	}
}
