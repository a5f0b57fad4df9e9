package locomotion

import (
	env "github.com/kiwi-sherbet/loco-mujoco/environment"
	"github.com/kiwi-sherbet/loco-mujoco/reward"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

// Default physical and episode parameters, shared by all locomotion
// environments unless a concrete environment overrides them.
const (
	DefaultGamma     = 0.99
	DefaultHorizon   = 1000
	DefaultNSubsteps = 10
	DefaultTimestep  = 0.001
)

// Collision-group keys used for the default ground-reaction-force
// sensors
const (
	GroupFloor      = "floor"
	GroupFootR      = "foot_r"
	GroupFrontFootR = "front_foot_r"
	GroupFootL      = "foot_l"
	GroupFrontFootL = "front_foot_l"
)

// DefaultGRFPairs returns the four collision-group pairs whose contact
// forces make up the default 12-dimensional ground-reaction-force
// vector. Environments with more or fewer force sensors override
// GRFPairs in their Config.
func DefaultGRFPairs() [][2]string {
	return [][2]string{
		{GroupFloor, GroupFootR},
		{GroupFloor, GroupFrontFootR},
		{GroupFloor, GroupFootL},
		{GroupFloor, GroupFrontFootL},
	}
}

// Config holds the construction-time parameters of a locomotion
// environment
type Config struct {
	// XMLPath lists the model files the environment can be built
	// from. A single path is normalized to a one-element list by
	// NewConfig.
	XMLPath []string

	// ActionSpec names the actuators controllable by the agent. An
	// empty list means all actuators.
	ActionSpec []string

	// ObservationSpec defines the raw state layout. The first two
	// entries must be the x and y position of the model's root.
	ObservationSpec []ObsEntry

	// CollisionGroups maps group keys to geom names for contact-force
	// queries
	CollisionGroups map[string][]string

	// Gamma is the discount factor and Horizon the maximum episode
	// length
	Gamma   float64
	Horizon int

	// NSubsteps physics steps are taken per environment step, each of
	// Timestep seconds. A Timestep of zero keeps the model file's
	// value.
	NSubsteps int
	Timestep  float64

	// RewardType selects the reward strategy and RewardParams its
	// parameters
	RewardType   reward.Type
	RewardParams reward.Params

	// Traj optionally loads reference trajectories at construction
	// time
	Traj *trajectory.Config

	// RandomStart initializes each episode from a random trajectory
	// sample; InitStepNo from a fixed one (negative means unset).
	// These modes are mutually exclusive and both require loaded
	// trajectories.
	RandomStart bool
	InitStepNo  int

	// UseFootForces appends windowed mean ground-reaction forces to
	// the observation. GRFPairs lists the contact pairs read each
	// step; nil selects DefaultGRFPairs.
	UseFootForces bool
	GRFPairs      [][2]string

	// Starter optionally supplies the observation each episode is
	// initialized from, overriding trajectory-based initialization
	Starter env.Starter

	// Seed seeds trajectory sampling
	Seed uint64
}

// NewConfig returns a Config for one model file with default episode
// parameters, random trajectory starts, and foot forces enabled
func NewConfig(xmlPath string, obsSpec []ObsEntry) Config {
	return Config{
		XMLPath:         []string{xmlPath},
		ObservationSpec: obsSpec,
		Gamma:           DefaultGamma,
		Horizon:         DefaultHorizon,
		NSubsteps:       DefaultNSubsteps,
		Timestep:        DefaultTimestep,
		RandomStart:     true,
		InitStepNo:      -1,
		UseFootForces:   true,
	}
}
