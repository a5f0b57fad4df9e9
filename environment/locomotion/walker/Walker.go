// Package walker implements a planar bipedal walker on top of the
// locomotion base environment. The walker registers itself as the
// base's fall predicate: an episode becomes absorbing when the pelvis
// drops too low or tilts too far.
package walker

import (
	_ "embed"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion"
	"github.com/kiwi-sherbet/loco-mujoco/mjcf"
	"github.com/kiwi-sherbet/loco-mujoco/sim"
)

//go:embed assets/walker.xml
var walkerXML []byte

// Fall thresholds on the pelvis state. The height joint reads as a
// displacement from the standing rest height.
const (
	maxHeightDrop = 0.45
	maxTilt       = 0.8
)

// Walker is a planar biped with actuated hips, knees, and ankles
type Walker struct {
	*locomotion.Base

	heightJoint int
	tiltJoint   int
}

// DefaultConfig returns the walker's construction options: the full
// observation layout, the foot and floor collision groups, and the
// default simulation parameters. Callers adjust the returned Config
// before passing it to New.
func DefaultConfig() locomotion.Config {
	c := locomotion.NewConfig("", ObservationSpec())
	c.XMLPath = nil
	c.CollisionGroups = map[string][]string{
		locomotion.GroupFloor:      {"floor"},
		locomotion.GroupFootR:      {"foot_r"},
		locomotion.GroupFrontFootR: {"front_foot_r"},
		locomotion.GroupFootL:      {"foot_l"},
		locomotion.GroupFrontFootL: {"front_foot_l"},
	}
	return c
}

// ObservationSpec returns the walker's state layout. The first two
// entries are the pelvis x and y position, which the base strips from
// agent-facing observations.
func ObservationSpec() []locomotion.ObsEntry {
	return []locomotion.ObsEntry{
		{Key: "q_pelvis_tx", Name: "pelvis_tx",
			Type: locomotion.ObservationJointPos},
		{Key: "q_pelvis_ty", Name: "pelvis_ty",
			Type: locomotion.ObservationJointPos},
		{Key: "q_pelvis_tilt", Name: "pelvis_tilt",
			Type: locomotion.ObservationJointPos},
		{Key: "q_hip_r", Name: "hip_r",
			Type: locomotion.ObservationJointPos},
		{Key: "q_knee_r", Name: "knee_r",
			Type: locomotion.ObservationJointPos},
		{Key: "q_ankle_r", Name: "ankle_r",
			Type: locomotion.ObservationJointPos},
		{Key: "q_hip_l", Name: "hip_l",
			Type: locomotion.ObservationJointPos},
		{Key: "q_knee_l", Name: "knee_l",
			Type: locomotion.ObservationJointPos},
		{Key: "q_ankle_l", Name: "ankle_l",
			Type: locomotion.ObservationJointPos},
		{Key: "dq_pelvis_tx", Name: "pelvis_tx",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_pelvis_ty", Name: "pelvis_ty",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_pelvis_tilt", Name: "pelvis_tilt",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_hip_r", Name: "hip_r",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_knee_r", Name: "knee_r",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_ankle_r", Name: "ankle_r",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_hip_l", Name: "hip_l",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_knee_l", Name: "knee_l",
			Type: locomotion.ObservationJointVel},
		{Key: "dq_ankle_l", Name: "ankle_l",
			Type: locomotion.ObservationJointVel},
	}
}

// New constructs a walker environment. The embedded model is used
// unless the Config names a model file of its own.
func New(c locomotion.Config) (*Walker, error) {
	if len(c.XMLPath) > 0 {
		base, err := locomotion.New(c)
		if err != nil {
			return nil, fmt.Errorf("newWalker: %v", err)
		}
		return register(base)
	}

	model, err := mjcf.Parse(walkerXML)
	if err != nil {
		return nil, fmt.Errorf("newWalker: %v", err)
	}
	if c.Timestep > 0 {
		model.Option.Timestep = c.Timestep
	}

	simulator, err := sim.NewPlanar(model, c.CollisionGroups)
	if err != nil {
		return nil, fmt.Errorf("newWalker: %v", err)
	}

	base, err := locomotion.NewWithSimulator(c, simulator, model)
	if err != nil {
		return nil, fmt.Errorf("newWalker: %v", err)
	}
	return register(base)
}

func register(base *locomotion.Base) (*Walker, error) {
	height, err := base.Simulator().JointHandle("pelvis_ty")
	if err != nil {
		return nil, fmt.Errorf("newWalker: %v", err)
	}
	tilt, err := base.Simulator().JointHandle("pelvis_tilt")
	if err != nil {
		return nil, fmt.Errorf("newWalker: %v", err)
	}

	w := &Walker{
		Base:        base,
		heightJoint: height,
		tiltJoint:   tilt,
	}
	base.RegisterFaller(w)
	return w, nil
}

// HasFallen reports whether the walker has fallen. The pelvis state is
// read from the simulator, which holds the state the observation was
// assembled from.
func (w *Walker) HasFallen(obs *mat.VecDense) bool {
	for i := 0; i < obs.Len(); i++ {
		if math.IsNaN(obs.AtVec(i)) || math.IsInf(obs.AtVec(i), 0) {
			return true
		}
	}

	// the pelvis x and y position are stripped from agent-facing
	// observations, so the height is not available in obs; both
	// thresholds read the simulator state the observation was
	// assembled from
	drop := w.Simulator().JointPos(w.heightJoint)
	tilt := w.Simulator().JointPos(w.tiltJoint)
	return drop < -maxHeightDrop || math.Abs(tilt) > maxTilt
}
