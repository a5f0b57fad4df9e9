// Package reward implements the pluggable reward strategies of
// locomotion environments and a registry resolving strategy names to
// constructors.
package reward

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reward computes the reward of state transitions. ResetState clears
// any internal state a strategy accumulates over an episode and is
// called once per episode reset.
type Reward interface {
	Reward(state, action, nextState mat.Vector, absorbing bool) float64
	ResetState()
}

// Type names a reward strategy. The empty Type selects NoReward.
type Type string

const (
	NoRewardType       Type = ""
	CustomType         Type = "custom"
	TargetVelocityType Type = "target_velocity"
	XPosType           Type = "x_pos"
)

// Func is the signature of user-supplied reward callables
type Func func(state, action, nextState mat.Vector, absorbing bool) float64

// Params carries the parameters of a reward strategy. Observation
// indices are resolved by the caller before construction.
type Params struct {
	// TargetVelocity is the forward velocity tracked by the
	// target_velocity strategy
	TargetVelocity float64

	// VelIdx is the observation index of the forward velocity,
	// required by target_velocity
	VelIdx int

	// Pos reads the current forward position of the model, required
	// by x_pos. Rewards are computed after stepping, so the getter
	// sees the post-transition state.
	Pos func() float64

	// Fn and Reset implement the custom strategy; Reset may be nil
	Fn    Func
	Reset func()
}

// registry maps strategy names to constructors; resolved once at
// environment construction time
var registry = map[Type]func(Params) (Reward, error){
	NoRewardType:       newNoReward,
	CustomType:         newCustom,
	TargetVelocityType: newTargetVelocity,
	XPosType:           newXPos,
}

// New constructs the named reward strategy. Unknown names are an
// error: the strategy has not been implemented.
func New(t Type, p Params) (Reward, error) {
	construct := registry[t]
	if construct == nil {
		return nil, fmt.Errorf("newReward: the specified reward has not "+
			"been implemented: %q", t)
	}
	return construct(p)
}

// NoReward always returns a fixed reward of zero
type NoReward struct{}

func newNoReward(Params) (Reward, error) {
	return NoReward{}, nil
}

// Reward returns 0
func (NoReward) Reward(_, _, _ mat.Vector, _ bool) float64 {
	return 0.0
}

// ResetState is a no-op
func (NoReward) ResetState() {}

// Custom wraps a user-supplied reward callable
type Custom struct {
	fn    Func
	reset func()
}

func newCustom(p Params) (Reward, error) {
	if p.Fn == nil {
		return nil, fmt.Errorf("newCustom: no reward callable given")
	}
	return &Custom{fn: p.Fn, reset: p.Reset}, nil
}

// Reward calls the wrapped callable
func (c *Custom) Reward(state, action, nextState mat.Vector,
	absorbing bool) float64 {
	return c.fn(state, action, nextState, absorbing)
}

// ResetState calls the wrapped reset callable if one was given
func (c *Custom) ResetState() {
	if c.reset != nil {
		c.reset()
	}
}

// TargetVelocity rewards tracking a target forward velocity. The
// reward is a squared-exponential of the velocity error, peaking at 1
// when the tracked velocity matches the target.
type TargetVelocity struct {
	velIdx int
	target float64
}

func newTargetVelocity(p Params) (Reward, error) {
	return &TargetVelocity{velIdx: p.VelIdx, target: p.TargetVelocity}, nil
}

// Reward returns exp(-(v - target)^2) for the tracked velocity v of
// the next state
func (t *TargetVelocity) Reward(_, _, nextState mat.Vector,
	_ bool) float64 {
	v := nextState.AtVec(t.velIdx)
	diff := v - t.target
	return math.Exp(-diff * diff)
}

// ResetState is a no-op
func (t *TargetVelocity) ResetState() {}

// XPos rewards forward progress: the reward is the forward position
// of the model after the transition. The position comes through a
// getter because agent-facing observations do not carry the absolute
// forward position.
type XPos struct {
	pos func() float64
}

func newXPos(p Params) (Reward, error) {
	if p.Pos == nil {
		return nil, fmt.Errorf("newXPos: no position getter given")
	}
	return &XPos{pos: p.Pos}, nil
}

// Reward returns the forward position after the transition
func (x *XPos) Reward(_, _, _ mat.Vector, _ bool) float64 {
	return x.pos()
}

// ResetState is a no-op
func (x *XPos) ResetState() {}
