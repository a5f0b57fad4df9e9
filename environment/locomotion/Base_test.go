package locomotion

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kiwi-sherbet/loco-mujoco/mjcf"
	"github.com/kiwi-sherbet/loco-mujoco/reward"
	"github.com/kiwi-sherbet/loco-mujoco/sim"
	"github.com/kiwi-sherbet/loco-mujoco/timestep"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

const testModel = `
<mujoco model="hopper2d">
  <option timestep="0.002"/>
  <worldbody>
    <geom name="floor" type="plane" pos="0 0" size="20 0.1"/>
    <body name="torso" pos="0 1.0">
      <joint name="pelvis_tx" type="slide" axis="1 0 0"/>
      <joint name="pelvis_ty" type="slide" axis="0 1 0"/>
      <joint name="pelvis_tilt" type="hinge" axis="0 0 1"/>
      <geom name="torso_geom" type="box" pos="0 0" size="0.1 0.2" density="1000"/>
      <body name="leg" pos="0 -0.2">
        <joint name="hip" type="hinge" axis="0 0 1" range="-1.0 1.0" damping="0.1"/>
        <geom name="leg_geom" type="box" pos="0 -0.25" size="0.05 0.25" density="1000"/>
      </body>
    </body>
  </worldbody>
  <actuator>
    <motor name="hip_actuator" joint="hip" ctrlrange="-10 10" gear="2"/>
  </actuator>
</mujoco>`

func testObsSpec() []ObsEntry {
	return []ObsEntry{
		{Key: "q_pelvis_tx", Name: "pelvis_tx", Type: ObservationJointPos},
		{Key: "q_pelvis_ty", Name: "pelvis_ty", Type: ObservationJointPos},
		{Key: "q_pelvis_tilt", Name: "pelvis_tilt",
			Type: ObservationJointPos},
		{Key: "q_hip", Name: "hip", Type: ObservationJointPos},
		{Key: "dq_pelvis_tx", Name: "pelvis_tx",
			Type: ObservationJointVel},
		{Key: "dq_pelvis_ty", Name: "pelvis_ty",
			Type: ObservationJointVel},
		{Key: "dq_pelvis_tilt", Name: "pelvis_tilt",
			Type: ObservationJointVel},
		{Key: "dq_hip", Name: "hip", Type: ObservationJointVel},
	}
}

type stubFaller struct {
	fallen bool
}

func (s *stubFaller) HasFallen(*mat.VecDense) bool {
	return s.fallen
}

func newTestBase(t *testing.T, adjust func(*Config)) (*Base, *stubFaller) {
	t.Helper()

	model, err := mjcf.Parse([]byte(testModel))
	if err != nil {
		t.Fatalf("could not parse model: %v", err)
	}

	c := NewConfig("", testObsSpec())
	c.XMLPath = nil
	c.Timestep = 0
	c.RandomStart = false
	c.UseFootForces = false
	c.CollisionGroups = map[string][]string{
		"floor": {"floor"},
		"leg":   {"leg_geom"},
	}
	if adjust != nil {
		adjust(&c)
	}

	simulator, err := sim.NewPlanar(model, c.CollisionGroups)
	if err != nil {
		t.Fatalf("could not build simulation: %v", err)
	}

	b, err := NewWithSimulator(c, simulator, model)
	if err != nil {
		t.Fatalf("could not build environment: %v", err)
	}
	f := &stubFaller{}
	b.RegisterFaller(f)
	return b, f
}

// testTrajData builds trajectory data where sample (i, j) holds
// 100*i + j in its first dimension
func testTrajData(nTraj, length int) [][][]float64 {
	dim := 8
	data := make([][][]float64, nTraj)
	for i := range data {
		data[i] = make([][]float64, length)
		for j := range data[i] {
			sample := make([]float64, dim)
			sample[0] = float64(100*i + j)
			data[i][j] = sample
		}
	}
	return data
}

func TestNewBase(t *testing.T) {
	b, _ := newTestBase(t, nil)

	if got := len(b.KinematicObsMask()); got != 6 {
		t.Errorf("got kinematic mask of length %v, want 6", got)
	}

	obsSpec := b.ObservationSpec()
	if obsSpec.Shape.Len() != 6 {
		t.Errorf("got observation spec of length %v, want 6",
			obsSpec.Shape.Len())
	}

	actionSpec := b.ActionSpec()
	if actionSpec.Shape.Len() != 1 {
		t.Fatalf("got action spec of length %v, want 1",
			actionSpec.Shape.Len())
	}
	if actionSpec.LowerBound.AtVec(0) != -1 ||
		actionSpec.UpperBound.AtVec(0) != 1 {
		t.Errorf("got action bounds [%v, %v], want [-1, 1]",
			actionSpec.LowerBound.AtVec(0), actionSpec.UpperBound.AtVec(0))
	}

	if got := b.Dt(); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("got dt %v, want 0.02", got)
	}
}

func TestPreprocessAction(t *testing.T) {
	b, _ := newTestBase(t, nil)

	// ctrlrange [-10, 10]: mean 0, delta 10
	u := b.PreprocessAction(mat.NewVecDense(1, []float64{0.5}))
	if got := u.AtVec(0); got != 5.0 {
		t.Errorf("got unnormalized action %v, want 5", got)
	}

	// out-of-range input passes through
	u = b.PreprocessAction(mat.NewVecDense(1, []float64{1.5}))
	if got := u.AtVec(0); got != 15.0 {
		t.Errorf("got unnormalized action %v, want 15", got)
	}
}

func TestPreprocessActionWrongDims(t *testing.T) {
	b, _ := newTestBase(t, nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong action dimensions")
		}
	}()
	b.PreprocessAction(mat.NewVecDense(2, []float64{0, 0}))
}

func TestSetupConfigErrors(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.RandomStart = true
	})
	if err := b.Setup(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("random start without trajectories: got %v, want "+
			"ErrConfig", err)
	}

	b, _ = newTestBase(t, func(c *Config) {
		c.InitStepNo = 5
	})
	if err := b.Setup(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("init step without trajectories: got %v, want ErrConfig",
			err)
	}

	b, _ = newTestBase(t, func(c *Config) {
		c.RandomStart = true
		c.InitStepNo = 5
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})
	if err := b.Setup(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("random start and init step together: got %v, want "+
			"ErrConfig", err)
	}
}

func TestSetupInitStep(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.InitStepNo = 13
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	if err := b.Setup(nil); err != nil {
		t.Fatalf("could not set up: %v", err)
	}

	// step 13 of 2x10 samples is sample 3 of trajectory 1
	h, _ := b.Simulator().JointHandle("pelvis_tx")
	if got := b.Simulator().JointPos(h); got != 103.0 {
		t.Errorf("got pelvis x %v, want 103", got)
	}
}

func TestSetupInitStepBoundary(t *testing.T) {
	// an init step landing exactly past the final sample resolves to
	// the final sample
	b, _ := newTestBase(t, func(c *Config) {
		c.InitStepNo = 20
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	if err := b.Setup(nil); err != nil {
		t.Fatalf("could not set up: %v", err)
	}
	h, _ := b.Simulator().JointHandle("pelvis_tx")
	if got := b.Simulator().JointPos(h); got != 109.0 {
		t.Errorf("got pelvis x %v, want 109", got)
	}
}

func TestSetupInitStepOutOfRange(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.InitStepNo = 21
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	if err := b.Setup(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
}

func TestSetupRandomStart(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.RandomStart = true
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	if err := b.Setup(nil); err != nil {
		t.Fatalf("could not set up: %v", err)
	}

	// the initialized pelvis x must come from the trajectory data
	h, _ := b.Simulator().JointHandle("pelvis_tx")
	got := b.Simulator().JointPos(h)
	valid := (got >= 0 && got <= 9) || (got >= 100 && got <= 109)
	if !valid {
		t.Errorf("pelvis x %v is not a trajectory sample value", got)
	}
}

func TestSetupFromObservation(t *testing.T) {
	b, _ := newTestBase(t, nil)

	obs := mat.NewVecDense(6, []float64{0.3, 0.5, 1.0, 0.1, -0.2, 0.4})
	if err := b.Setup(obs); err != nil {
		t.Fatalf("could not set up from observation: %v", err)
	}

	// the stripped x and y position are restored as zero
	h, _ := b.Simulator().JointHandle("pelvis_tx")
	if got := b.Simulator().JointPos(h); got != 0 {
		t.Errorf("got pelvis x %v, want 0", got)
	}
	hTilt, _ := b.Simulator().JointHandle("pelvis_tilt")
	if got := b.Simulator().JointPos(hTilt); got != 0.3 {
		t.Errorf("got pelvis tilt %v, want 0.3", got)
	}
	hHip, _ := b.Simulator().JointHandle("hip")
	if got := b.Simulator().JointPos(hHip); got != 0.5 {
		t.Errorf("got hip %v, want 0.5", got)
	}
}

func TestObservationRoundTrip(t *testing.T) {
	b, _ := newTestBase(t, nil)

	obs := mat.NewVecDense(6, []float64{0.3, 0.5, 0.1, -0.2, 0.4, 0.05})
	if err := b.Setup(obs); err != nil {
		t.Fatalf("could not set up from observation: %v", err)
	}

	b.SimulationPostStep()
	got := b.CreateObservation(b.helper.BuildObs(b.simulator))

	if got.Len() != obs.Len() {
		t.Fatalf("got observation of length %v, want %v", got.Len(),
			obs.Len())
	}
	for i := 0; i < obs.Len(); i++ {
		if got.AtVec(i) != obs.AtVec(i) {
			t.Errorf("component %v: got %v, want %v", i, got.AtVec(i),
				obs.AtVec(i))
		}
	}
}

func TestXPosReward(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.RewardType = reward.XPosType
	})

	h, _ := b.Simulator().JointHandle("pelvis_tx")
	b.Simulator().SetJointPos(h, 1.5)
	b.Simulator().Forward()
	if got := b.Reward(nil, nil, nil, false); got != 1.5 {
		t.Errorf("got reward %v, want 1.5", got)
	}

	b.Reset()
	step, _ := b.Step(mat.NewVecDense(1, nil))
	if want := b.Simulator().JointPos(h); step.Reward != want {
		t.Errorf("got reward %v, want pelvis x %v", step.Reward, want)
	}
}

func TestResetStepPipeline(t *testing.T) {
	b, _ := newTestBase(t, nil)

	first := b.Reset()
	if !first.First() {
		t.Error("reset should produce a First timestep")
	}
	if first.Observation.Len() != 6 {
		t.Errorf("got observation of length %v, want 6",
			first.Observation.Len())
	}

	step, last := b.Step(mat.NewVecDense(1, []float64{0.1}))
	if step.Number != 1 {
		t.Errorf("got step number %v, want 1", step.Number)
	}
	if last {
		t.Error("episode should not end on the first step")
	}
	if step.Reward != 0 {
		t.Errorf("got reward %v with no reward strategy, want 0",
			step.Reward)
	}
}

func TestStepEndsOnFall(t *testing.T) {
	b, f := newTestBase(t, nil)

	b.Reset()
	f.fallen = true
	step, last := b.Step(mat.NewVecDense(1, []float64{0}))

	if !last {
		t.Fatal("episode should end when the model falls")
	}
	if !step.Last() {
		t.Error("fall should produce a Last timestep")
	}
	if step.EndType != timestep.TerminalStateReached {
		t.Errorf("got end type %v, want TerminalStateReached",
			step.EndType)
	}
}

func TestStepEndsOnHorizon(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.Horizon = 2
	})

	b.Reset()
	if _, last := b.Step(mat.NewVecDense(1, []float64{0})); last {
		t.Fatal("episode ended before the horizon")
	}
	step, last := b.Step(mat.NewVecDense(1, []float64{0}))
	if !last {
		t.Fatal("episode should end at the horizon")
	}
	if step.EndType != timestep.Timeout {
		t.Errorf("got end type %v, want Timeout", step.EndType)
	}
}

func TestPostStepOrdering(t *testing.T) {
	b, _ := newTestBase(t, nil)
	b.Reset()

	// reading an observation before the post-step hook panics
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic reading observation before " +
					"the post-step hook")
			}
		}()
		b.CreateObservation(make([]float64, 8))
	}()

	// running the hook twice panics
	b.SimulationPostStep()
	defer func() {
		if recover() == nil {
			t.Error("expected panic running the post-step hook twice")
		}
	}()
	b.SimulationPostStep()
}

func TestGroundForceObservation(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.UseFootForces = true
		c.GRFPairs = [][2]string{{"floor", "leg"}}
	})

	if got := b.ObservationSpec().Shape.Len(); got != 9 {
		t.Errorf("got observation spec of length %v, want 9", got)
	}

	first := b.Reset()
	if first.Observation.Len() != 9 {
		t.Errorf("got observation of length %v, want 9",
			first.Observation.Len())
	}
}

func TestGroundForceNeedsGroups(t *testing.T) {
	model, _ := mjcf.Parse([]byte(testModel))
	simulator, err := sim.NewPlanar(model, nil)
	if err != nil {
		t.Fatalf("could not build simulation: %v", err)
	}

	c := NewConfig("", testObsSpec())
	c.XMLPath = nil
	c.RandomStart = false
	if _, err := NewWithSimulator(c, simulator, model); err == nil {
		t.Error("expected error for foot forces without collision groups")
	}
}

func TestObsIdx(t *testing.T) {
	b, _ := newTestBase(t, nil)

	idx, err := b.ObsIdx("q_pelvis_tilt")
	if err != nil {
		t.Fatalf("could not resolve key: %v", err)
	}
	if len(idx) != 1 || idx[0] != 0 {
		t.Errorf("got indices %v, want [0]", idx)
	}

	idx, err = b.ObsIdx("dq_hip")
	if err != nil {
		t.Fatalf("could not resolve key: %v", err)
	}
	if len(idx) != 1 || idx[0] != 5 {
		t.Errorf("got indices %v, want [5]", idx)
	}

	if _, err := b.ObsIdx("q_pelvis_tx"); err == nil {
		t.Error("expected error for a stripped observation component")
	}
	if _, err := b.ObsIdx("no_such_key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestFromObs(t *testing.T) {
	b, _ := newTestBase(t, nil)

	obs := mat.NewVecDense(6, []float64{0.3, 0.5, 1.0, 0.1, -0.2, 0.4})
	v, err := b.FromObs(obs, "q_hip")
	if err != nil {
		t.Fatalf("could not extract key: %v", err)
	}
	if v.Len() != 1 || v.AtVec(0) != 0.5 {
		t.Errorf("got %v, want [0.5]", v)
	}
}

func TestLenQposQvel(t *testing.T) {
	b, _ := newTestBase(t, nil)

	nQpos, nQvel := b.LenQposQvel()
	if nQpos != 4 || nQvel != 4 {
		t.Errorf("got (%v, %v) position and velocity entries, want (4, 4)",
			nQpos, nQvel)
	}
}

func TestCreateDatasetNoTrajectories(t *testing.T) {
	b, _ := newTestBase(t, nil)

	if _, err := b.CreateDataset(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
}

func TestLoadTrajectoryDefaults(t *testing.T) {
	b, _ := newTestBase(t, nil)

	err := b.LoadTrajectory(trajectory.Config{Data: testTrajData(1, 5)})
	if err != nil {
		t.Fatalf("could not load trajectories: %v", err)
	}

	traj := b.Trajectories()
	if traj == nil {
		t.Fatal("no trajectory store after loading")
	}
	if got := len(traj.Keys()); got != 8 {
		t.Errorf("got %v trajectory keys, want 8", got)
	}
	if got := len(traj.JointPosIdx()); got != 4 {
		t.Errorf("got %v joint position indices, want 4", got)
	}
}

func TestHasFallenUnregistered(t *testing.T) {
	model, _ := mjcf.Parse([]byte(testModel))
	simulator, _ := sim.NewPlanar(model, nil)

	c := NewConfig("", testObsSpec())
	c.XMLPath = nil
	c.RandomStart = false
	c.UseFootForces = false
	b, err := NewWithSimulator(c, simulator, model)
	if err != nil {
		t.Fatalf("could not build environment: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unregistered fall predicate")
		}
	}()
	b.HasFallen(mat.NewVecDense(6, nil))
}
