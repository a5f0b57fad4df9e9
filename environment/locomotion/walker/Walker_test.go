package walker

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion"
	"github.com/kiwi-sherbet/loco-mujoco/reward"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

func newTestWalker(t *testing.T,
	adjust func(*locomotion.Config)) *Walker {
	t.Helper()

	c := DefaultConfig()
	c.RandomStart = false
	if adjust != nil {
		adjust(&c)
	}

	w, err := New(c)
	if err != nil {
		t.Fatalf("could not build walker: %v", err)
	}
	return w
}

// walkerTrajData builds resting-state trajectory samples matching the
// walker's 18-dimensional state layout
func walkerTrajData(nTraj, length int) [][][]float64 {
	data := make([][][]float64, nTraj)
	for i := range data {
		data[i] = make([][]float64, length)
		for j := range data[i] {
			sample := make([]float64, 18)
			sample[0] = 0.01 * float64(j) // pelvis x advances slowly
			data[i][j] = sample
		}
	}
	return data
}

func TestNewWalker(t *testing.T) {
	w := newTestWalker(t, nil)

	// 18 state dimensions minus the stripped x and y position, plus
	// 12 ground-force components
	if got := w.ObservationSpec().Shape.Len(); got != 28 {
		t.Errorf("got observation spec of length %v, want 28", got)
	}
	if got := w.ActionSpec().Shape.Len(); got != 6 {
		t.Errorf("got action spec of length %v, want 6", got)
	}
}

func TestWalkerReset(t *testing.T) {
	w := newTestWalker(t, nil)

	first := w.Reset()
	if !first.First() {
		t.Error("reset should produce a First timestep")
	}
	if first.Observation.Len() != 28 {
		t.Errorf("got observation of length %v, want 28",
			first.Observation.Len())
	}
}

func TestWalkerStandingIsNotFallen(t *testing.T) {
	w := newTestWalker(t, nil)

	first := w.Reset()
	if w.HasFallen(first.Observation) {
		t.Error("walker should not be fallen at its rest state")
	}
}

func TestWalkerFallDetection(t *testing.T) {
	w := newTestWalker(t, nil)
	w.Reset()

	// drop the pelvis well below the fall threshold
	h, err := w.Simulator().JointHandle("pelvis_ty")
	if err != nil {
		t.Fatalf("could not resolve pelvis height joint: %v", err)
	}
	w.Simulator().SetJointPos(h, -0.6)
	w.Simulator().Forward()

	if !w.HasFallen(mat.NewVecDense(28, nil)) {
		t.Error("walker should be fallen with pelvis dropped 0.6")
	}

	// excessive tilt is also a fall
	w.Reset()
	hTilt, _ := w.Simulator().JointHandle("pelvis_tilt")
	w.Simulator().SetJointPos(hTilt, 1.2)
	w.Simulator().Forward()
	if !w.HasFallen(mat.NewVecDense(28, nil)) {
		t.Error("walker should be fallen when tilted 1.2 rad")
	}
}

func TestWalkerStep(t *testing.T) {
	w := newTestWalker(t, nil)
	w.Reset()

	action := mat.NewVecDense(6, nil)
	step, _ := w.Step(action)
	if step.Number != 1 {
		t.Errorf("got step number %v, want 1", step.Number)
	}
	if step.Observation.Len() != 28 {
		t.Errorf("got observation of length %v, want 28",
			step.Observation.Len())
	}
}

func TestWalkerTrajectoryInit(t *testing.T) {
	w := newTestWalker(t, func(c *locomotion.Config) {
		c.RandomStart = false
		c.InitStepNo = 7
		c.Traj = &trajectory.Config{Data: walkerTrajData(1, 10)}
	})

	first := w.Reset()
	if !first.First() {
		t.Error("reset should produce a First timestep")
	}

	h, _ := w.Simulator().JointHandle("pelvis_tx")
	if got := w.Simulator().JointPos(h); got != 0.07 {
		t.Errorf("got pelvis x %v, want 0.07", got)
	}
}

func TestWalkerVelocityReward(t *testing.T) {
	w := newTestWalker(t, func(c *locomotion.Config) {
		c.RewardType = reward.TargetVelocityType
		c.RewardParams = reward.Params{TargetVelocity: 1.0}
	})

	w.Reset()
	step, _ := w.Step(mat.NewVecDense(6, nil))
	if step.Reward < 0 || step.Reward > 1 {
		t.Errorf("got velocity-tracking reward %v, want value in [0, 1]",
			step.Reward)
	}
}
