package locomotion

import (
	"math"
	"testing"
)

func TestRunningAveragedWindow(t *testing.T) {
	w := NewRunningAveragedWindow(2, 3)

	// mean before any update is zero
	m := w.Mean()
	if m.AtVec(0) != 0 || m.AtVec(1) != 0 {
		t.Errorf("got mean %v before updates, want zeros", m)
	}

	w.Update([]float64{3, 6})
	m = w.Mean()
	if m.AtVec(0) != 3 || m.AtVec(1) != 6 {
		t.Errorf("got mean %v after one update, want [3, 6]", m)
	}

	w.Update([]float64{6, 0})
	m = w.Mean()
	if math.Abs(m.AtVec(0)-4.5) > 1e-12 || math.Abs(m.AtVec(1)-3) > 1e-12 {
		t.Errorf("got mean %v after two updates, want [4.5, 3]", m)
	}

	// filling past the window drops the oldest sample
	w.Update([]float64{0, 0})
	w.Update([]float64{0, 0})
	m = w.Mean()
	if math.Abs(m.AtVec(0)-2) > 1e-12 {
		t.Errorf("got mean %v with full window, want first component 2", m)
	}

	w.Reset()
	m = w.Mean()
	if m.AtVec(0) != 0 || m.AtVec(1) != 0 {
		t.Errorf("got mean %v after reset, want zeros", m)
	}
}

func TestRunningAveragedWindowDimMismatch(t *testing.T) {
	w := NewRunningAveragedWindow(2, 3)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for sample dimension mismatch")
		}
	}()
	w.Update([]float64{1})
}

func TestRunningAveragedWindowBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive window size")
		}
	}()
	NewRunningAveragedWindow(2, 0)
}
