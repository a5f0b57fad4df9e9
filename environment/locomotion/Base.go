// Package locomotion implements the base environment for locomotion
// reinforcement-learning tasks. The base wires a physics simulator, a
// reference-trajectory store, and a pluggable reward strategy into an
// environment: it normalizes actions, assembles agent-facing
// observations, initializes episodes from trajectory data, and flags
// falls as absorbing states. Concrete environments embed Base and
// register themselves as its Faller.
package locomotion

import (
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	env "github.com/kiwi-sherbet/loco-mujoco/environment"
	"github.com/kiwi-sherbet/loco-mujoco/mjcf"
	"github.com/kiwi-sherbet/loco-mujoco/reward"
	"github.com/kiwi-sherbet/loco-mujoco/sim"
	"github.com/kiwi-sherbet/loco-mujoco/timestep"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
	"github.com/kiwi-sherbet/loco-mujoco/utils/matutils"
)

// ErrConfig flags an invalid combination of construction or reset
// options, or an operation requested without the trajectory data it
// needs
var ErrConfig = errors.New("invalid environment configuration")

// Observation keys the built-in reward strategies resolve at
// construction time
const (
	VelocityRewardKey = "dq_pelvis_tx"
	PositionRewardKey = "q_pelvis_tx"
)

// Faller decides whether an agent-facing observation corresponds to a
// fallen model. Every concrete locomotion environment must supply one;
// the base itself has no notion of what a fall looks like.
type Faller interface {
	HasFallen(obs *mat.VecDense) bool
}

// stepPhase tracks the per-step pipeline ordering contract: the
// post-step hook must run after the physics step and before the next
// observation is assembled.
type stepPhase int

const (
	awaitingStep stepPhase = iota
	steppedAwaitingObs
)

// Base is the common core of locomotion environments. It is not safe
// for concurrent use.
type Base struct {
	simulator sim.Simulator
	helper    *ObsHelper

	modelPaths []string
	model      *mjcf.Model

	gamma     float64
	horizon   int
	nSubsteps int

	// agent action layout: actuatorIdx maps agent action components
	// to simulator control components
	actuatorIdx  []int
	normActMean  *mat.VecDense
	normActDelta *mat.VecDense
	nativeLow    *mat.VecDense
	nativeHigh   *mat.VecDense

	obsLow, obsHigh *mat.VecDense
	kinematicMask   []int

	rewardFn reward.Reward

	useFootForces bool
	grfPairs      [][2]string
	meanGRF       *RunningAveragedWindow

	trajectories *trajectory.Trajectory
	trajConfig   trajectory.Config
	randomStart  bool
	initStepNo   int

	rng     *rand.Rand
	starter env.Starter
	enders  []env.Ender
	faller  Faller

	phase           stepPhase
	currentTimeStep timestep.TimeStep
}

// New constructs a locomotion environment from a Config. The first
// model path is loaded and simulated; remaining paths are kept for
// callers that rebuild the environment with model variants.
func New(c Config) (*Base, error) {
	if len(c.XMLPath) == 0 {
		return nil, fmt.Errorf("new: %w: no model path given", ErrConfig)
	}

	model, err := mjcf.LoadModel(c.XMLPath[0])
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if c.Timestep > 0 {
		model.Option.Timestep = c.Timestep
	}

	simulator, err := sim.NewPlanar(model, c.CollisionGroups)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return NewWithSimulator(c, simulator, model)
}

// NewWithSimulator constructs a locomotion environment on an existing
// simulator. The model handle may be nil when the simulator was not
// built from a model file.
func NewWithSimulator(c Config, simulator sim.Simulator,
	model *mjcf.Model) (*Base, error) {
	helper, err := NewObsHelper(c.ObservationSpec, simulator)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	nSubsteps := c.NSubsteps
	if nSubsteps <= 0 {
		nSubsteps = 1
	}

	b := &Base{
		simulator:     simulator,
		helper:        helper,
		modelPaths:    append([]string(nil), c.XMLPath...),
		model:         model,
		gamma:         c.Gamma,
		horizon:       c.Horizon,
		nSubsteps:     nSubsteps,
		useFootForces: c.UseFootForces,
		grfPairs:      c.GRFPairs,
		randomStart:   c.RandomStart,
		initStepNo:    c.InitStepNo,
		rng:           rand.New(rand.NewSource(c.Seed)),
		starter:       c.Starter,
		phase:         awaitingStep,
	}

	if err := b.resolveActions(c.ActionSpec); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	b.buildObservationSpace()

	// mask selecting the kinematic observation components (the x and
	// y position are not part of the agent-facing observation)
	b.kinematicMask = make([]int, helper.SampleLen()-2)
	for i := range b.kinematicMask {
		b.kinematicMask[i] = i
	}

	if b.useFootForces {
		if b.grfPairs == nil {
			b.grfPairs = DefaultGRFPairs()
		}
		for _, pair := range b.grfPairs {
			if _, err := simulator.CollisionForce(pair[0],
				pair[1]); err != nil {
				return nil, fmt.Errorf("new: foot forces need collision "+
					"groups: %v", err)
			}
		}
		b.meanGRF = NewRunningAveragedWindow(3*len(b.grfPairs), nSubsteps)
	}

	b.rewardFn, err = b.buildReward(c.RewardType, c.RewardParams)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if c.Traj != nil {
		if err := b.LoadTrajectory(*c.Traj); err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	b.enders = []env.Ender{
		env.NewFunctionEnder(b.fallen, timestep.TerminalStateReached),
		env.NewStepLimit(b.horizon),
	}

	return b, nil
}

// resolveActions restricts the agent action space to the named
// actuators (all actuators when names is empty) and caches the native
// control bounds as normalization constants: the agent-facing action
// space is [-1, 1] in every component.
func (b *Base) resolveActions(names []string) error {
	all := b.simulator.ActuatorNames()
	low, high := b.simulator.ControlBounds()

	if len(names) == 0 {
		names = all
	}
	byName := make(map[string]int, len(all))
	for i, n := range all {
		byName[n] = i
	}

	n := len(names)
	b.actuatorIdx = make([]int, n)
	mean := make([]float64, n)
	delta := make([]float64, n)
	nativeLow := make([]float64, n)
	nativeHigh := make([]float64, n)
	for i, name := range names {
		idx, ok := byName[name]
		if !ok {
			return fmt.Errorf("resolveActions: no actuator named %q", name)
		}
		b.actuatorIdx[i] = idx
		nativeLow[i] = low[idx]
		nativeHigh[i] = high[idx]
		mean[i] = (high[idx] + low[idx]) / 2.0
		delta[i] = (high[idx] - low[idx]) / 2.0
	}

	b.normActMean = mat.NewVecDense(n, mean)
	b.normActDelta = mat.NewVecDense(n, delta)
	b.nativeLow = mat.NewVecDense(n, nativeLow)
	b.nativeHigh = mat.NewVecDense(n, nativeHigh)
	return nil
}

// buildObservationSpace computes the agent-facing observation bounds:
// the raw bounds minus the first two components, extended by unbounded
// ground-force components when foot forces are enabled
func (b *Base) buildObservationSpace() {
	rawLow, rawHigh := b.helper.Bounds(b.simulator)
	low := append([]float64(nil), rawLow[2:]...)
	high := append([]float64(nil), rawHigh[2:]...)

	if b.useFootForces {
		n := 12
		if b.grfPairs != nil {
			n = 3 * len(b.grfPairs)
		}
		for i := 0; i < n; i++ {
			low = append(low, math.Inf(-1))
			high = append(high, math.Inf(1))
		}
	}

	b.obsLow = mat.NewVecDense(len(low), low)
	b.obsHigh = mat.NewVecDense(len(high), high)
}

// buildReward resolves the observation indices the built-in reward
// strategies need and constructs the strategy
func (b *Base) buildReward(t reward.Type,
	p reward.Params) (reward.Reward, error) {
	switch t {
	case reward.TargetVelocityType:
		idx, err := b.ObsIdx(VelocityRewardKey)
		if err != nil {
			return nil, fmt.Errorf("buildReward: %v", err)
		}
		if len(idx) != 1 {
			return nil, fmt.Errorf("buildReward: key %q does not name a "+
				"unique observation index", VelocityRewardKey)
		}
		p.VelIdx = idx[0]
	case reward.XPosType:
		e, ok := b.helper.entry(PositionRewardKey)
		if !ok {
			return nil, fmt.Errorf("buildReward: no observation key %q",
				PositionRewardKey)
		}
		if e.Type != ObservationJointPos {
			return nil, fmt.Errorf("buildReward: key %q does not name a "+
				"joint position", PositionRewardKey)
		}
		// the forward position is stripped from agent observations;
		// the strategy reads it from the simulator, which holds the
		// post-transition state when rewards are computed
		handle := e.handle
		p.Pos = func() float64 {
			return b.simulator.JointPos(handle)
		}
	}
	return reward.New(t, p)
}

// RegisterFaller registers the concrete environment's fall predicate
// with the base. Stepping a base without a registered Faller panics.
func (b *Base) RegisterFaller(f Faller) {
	b.faller = f
}

// Simulator returns the underlying simulator
func (b *Base) Simulator() sim.Simulator {
	return b.simulator
}

// Dt returns the duration of one environment step in seconds
func (b *Base) Dt() float64 {
	return b.simulator.Timestep() * float64(b.nSubsteps)
}

// LoadTrajectory loads reference trajectories into the environment,
// filling the store configuration from the environment's observation
// keys, bounds, and control period. A previously loaded store is
// replaced, with a warning: the last call wins.
func (b *Base) LoadTrajectory(tc trajectory.Config) error {
	if b.trajectories != nil {
		fmt.Fprintln(os.Stderr, "loadTrajectory: new trajectories loaded,"+
			" which overrides the old ones")
	}

	if tc.Keys == nil {
		tc.Keys = b.helper.SampleKeys()
	}
	if tc.Low == nil || tc.High == nil {
		low, high := b.helper.Bounds(b.simulator)
		tc.Low = mat.NewVecDense(len(low), low)
		tc.High = mat.NewVecDense(len(high), high)
	}
	if tc.JointPosIdx == nil {
		tc.JointPosIdx = b.helper.JointPosIdx()
	}
	if tc.ControlDT == 0 {
		tc.ControlDT = b.Dt()
	}

	traj, err := trajectory.New(tc)
	if err != nil {
		return fmt.Errorf("loadTrajectory: %v", err)
	}
	b.trajectories = traj
	b.trajConfig = tc
	return nil
}

// Trajectories returns the loaded trajectory store, or nil
func (b *Base) Trajectories() *trajectory.Trajectory {
	return b.trajectories
}

// Setup initializes the simulation state for a new episode. With a
// caller-provided observation the state is restored from it directly
// and the trajectory flags are ignored. Otherwise exactly one of
// random start, fixed init step, or the simulator's default state
// applies; invalid combinations are configuration errors. The reward
// strategy's internal state is reset unconditionally.
func (b *Base) Setup(obs *mat.VecDense) error {
	b.rewardFn.ResetState()

	if obs != nil {
		return b.initSimFromObs(obs)
	}

	if b.trajectories == nil && b.randomStart {
		return fmt.Errorf("setup: %w: random start not possible without "+
			"trajectory data", ErrConfig)
	}
	if b.trajectories == nil && b.initStepNo >= 0 {
		return fmt.Errorf("setup: %w: setting an initial step is not "+
			"possible without trajectory data", ErrConfig)
	}
	if b.initStepNo >= 0 && b.randomStart {
		return fmt.Errorf("setup: %w: either use a random start or set "+
			"an initial step, not both", ErrConfig)
	}

	if b.trajectories == nil {
		return nil
	}

	switch {
	case b.randomStart:
		sample := b.trajectories.ResetRandom(b.rng)
		return b.SetSimState(sample)

	case b.initStepNo >= 0:
		trajLen := b.trajectories.Length()
		nTraj := b.trajectories.NumTrajectories()
		if b.initStepNo > trajLen*nTraj {
			return fmt.Errorf("setup: %w: init step %v exceeds %v total "+
				"trajectory samples", ErrConfig, b.initStepNo,
				trajLen*nTraj)
		}

		traj := b.initStepNo / trajLen
		step := b.initStepNo % trajLen
		if traj == nTraj {
			// boundary-inclusive: the step count lands exactly past
			// the final sample, which is the closest valid state
			traj, step = nTraj-1, trajLen-1
		}

		sample, err := b.trajectories.ResetTrajectory(step, traj)
		if err != nil {
			return fmt.Errorf("setup: %v", err)
		}
		return b.SetSimState(sample)
	}

	return nil
}

// SetSimState writes a full-layout state sample into the simulator
// and recomputes derived quantities. This is the sole channel through
// which external state enters the simulation. The sample length must
// equal the raw state layout length.
func (b *Base) SetSimState(sample []float64) error {
	if err := b.helper.SetState(b.simulator, sample); err != nil {
		return fmt.Errorf("setSimState: %v", err)
	}
	b.simulator.Forward()
	return nil
}

// initSimFromObs restores the simulator from an agent-facing
// observation: the stripped x and y positions are replaced by zeros
// and any appended channels (ground forces) are dropped before the
// sample is written back.
func (b *Base) initSimFromObs(obs *mat.VecDense) error {
	sampleLen := b.helper.SampleLen()
	if obs.Len()+2 < sampleLen {
		panic(fmt.Sprintf("initSimFromObs: observation too short \n\t"+
			"have(%v) \n\twant at least(%v)", obs.Len(), sampleLen-2))
	}

	sample := make([]float64, sampleLen)
	for i := 2; i < sampleLen; i++ {
		sample[i] = obs.AtVec(i - 2)
	}
	return b.SetSimState(sample)
}

// CreateObservation converts a raw state sample into the agent-facing
// observation: the absolute x and y position are dropped, and the
// windowed mean ground-reaction force (scaled by 1/1000) is appended
// when foot forces are enabled
func (b *Base) CreateObservation(raw []float64) *mat.VecDense {
	if b.phase != steppedAwaitingObs {
		panic("createObservation: observation read before the " +
			"post-step hook ran")
	}
	b.phase = awaitingStep

	obs := append([]float64(nil), raw[2:]...)
	if b.useFootForces {
		grf := b.meanGRF.Mean()
		for i := 0; i < grf.Len(); i++ {
			obs = append(obs, grf.AtVec(i)/1000.0)
		}
	}
	return mat.NewVecDense(len(obs), obs)
}

// PreprocessAction maps an agent action, componentwise in [-1, 1], to
// the native actuator ranges. Out-of-range input is not rejected here;
// the simulator clamps it downstream.
func (b *Base) PreprocessAction(action *mat.VecDense) *mat.VecDense {
	if action.Len() != b.normActMean.Len() {
		panic(fmt.Sprintf("preprocessAction: invalid number of action "+
			"dimensions \n\thave(%v) \n\twant(%v)", action.Len(),
			b.normActMean.Len()))
	}

	unnormalized := mat.NewVecDense(action.Len(), nil)
	unnormalized.MulElemVec(action, b.normActDelta)
	unnormalized.AddVec(unnormalized, b.normActMean)
	return unnormalized
}

// SimulationPostStep updates the ground-force statistics. It must run
// exactly once per environment step, after the physics substeps and
// before the next observation is assembled.
func (b *Base) SimulationPostStep() {
	if b.phase != awaitingStep {
		panic("simulationPostStep: hook ran twice without an " +
			"observation read")
	}
	b.phase = steppedAwaitingObs

	if !b.useFootForces {
		return
	}
	b.meanGRF.Update(b.groundForces())
}

// groundForces reads the instantaneous contact forces of the
// configured foot contact pairs, three force components per pair
func (b *Base) groundForces() []float64 {
	grf := make([]float64, 0, 3*len(b.grfPairs))
	for _, pair := range b.grfPairs {
		f, err := b.simulator.CollisionForce(pair[0], pair[1])
		if err != nil {
			panic(fmt.Sprintf("groundForces: %v", err))
		}
		grf = append(grf, f[:3]...)
	}
	return grf
}

// IsAbsorbing reports whether an observation is an absorbing state
func (b *Base) IsAbsorbing(obs *mat.VecDense) bool {
	return b.HasFallen(obs)
}

// HasFallen delegates to the registered Faller. A base with no
// registered concrete environment cannot decide falls and panics.
func (b *Base) HasFallen(obs *mat.VecDense) bool {
	if b.faller == nil {
		panic("hasFallen: not implemented: no concrete environment " +
			"registered with the base")
	}
	return b.faller.HasFallen(obs)
}

func (b *Base) fallen(obs *mat.VecDense) bool {
	return b.HasFallen(obs)
}

// CreateDataset materializes (states, next states, absorbing) arrays
// from the loaded trajectories, dropping the columns named in
// ignoreKeys
func (b *Base) CreateDataset(
	ignoreKeys []string) (*trajectory.Dataset, error) {
	if b.trajectories == nil {
		return nil, fmt.Errorf("createDataset: %w: no trajectory was "+
			"passed to the environment", ErrConfig)
	}
	return b.trajectories.CreateDataset(ignoreKeys)
}

// Reset starts a new episode and returns its first timestep
func (b *Base) Reset() timestep.TimeStep {
	b.simulator.Reset()

	var obs *mat.VecDense
	if b.starter != nil {
		obs = b.starter.Start()
	}
	if err := b.Setup(obs); err != nil {
		panic(fmt.Sprintf("reset: %v", err))
	}

	b.phase = steppedAwaitingObs
	first := timestep.New(timestep.First, 0, b.gamma,
		b.CreateObservation(b.helper.BuildObs(b.simulator)), 0)
	b.currentTimeStep = first
	return first
}

// Step applies one agent action for NSubsteps physics steps and
// returns the resulting timestep along with whether the episode ended
func (b *Base) Step(action *mat.VecDense) (timestep.TimeStep, bool) {
	state := b.currentTimeStep.Observation

	u := b.PreprocessAction(action)
	control := make([]float64, len(b.simulator.ActuatorNames()))
	for i, idx := range b.actuatorIdx {
		control[idx] = u.AtVec(i)
	}
	if err := b.simulator.SetControl(control); err != nil {
		panic(fmt.Sprintf("step: %v", err))
	}

	for i := 0; i < b.nSubsteps; i++ {
		b.simulator.Step()
	}
	b.SimulationPostStep()

	nextObs := b.CreateObservation(b.helper.BuildObs(b.simulator))
	absorbing := b.IsAbsorbing(nextObs)
	r := b.rewardFn.Reward(state, action, nextObs, absorbing)

	t := timestep.New(timestep.Mid, r, b.gamma, nextObs,
		b.currentTimeStep.Number+1)
	last := false
	for _, e := range b.enders {
		if e.End(&t) {
			last = true
		}
	}

	b.currentTimeStep = t
	return t, last
}

// CurrentTimeStep returns the timestep of the last Reset or Step
func (b *Base) CurrentTimeStep() timestep.TimeStep {
	return b.currentTimeStep
}

// Reward calls the environment's reward strategy
func (b *Base) Reward(state, action, nextState mat.Vector,
	absorbing bool) float64 {
	return b.rewardFn.Reward(state, action, nextState, absorbing)
}

// DiscountSpec returns the discount specification of the environment
func (b *Base) DiscountSpec() env.Spec {
	bounds := mat.NewVecDense(1, []float64{b.gamma})
	return env.NewSpec(mat.NewVecDense(1, nil), env.Discount, bounds,
		bounds, env.Continuous)
}

// ObservationSpec returns the agent-facing observation specification
func (b *Base) ObservationSpec() env.Spec {
	n := b.obsLow.Len()
	return env.NewSpec(mat.NewVecDense(n, nil), env.Observation, b.obsLow,
		b.obsHigh, env.Continuous)
}

// ActionSpec returns the agent-facing action specification: every
// component lies in [-1, 1]
func (b *Base) ActionSpec() env.Spec {
	n := b.normActMean.Len()
	return env.NewSpec(mat.NewVecDense(n, nil), env.Action,
		matutils.VecFilled(n, -1.0), matutils.VecFilled(n, 1.0),
		env.Continuous)
}

// NativeActionBounds returns the cached native actuator bounds the
// action normalization maps into
func (b *Base) NativeActionBounds() (low, high *mat.VecDense) {
	return b.nativeLow, b.nativeHigh
}
