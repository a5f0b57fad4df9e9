// Package environment outlines the interfaces and structs needed to implement
// concrete environments
package environment

import (
	"github.com/kiwi-sherbet/loco-mujoco/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes end. If the argument timestep ends its
// episode, End sets the timestep's StepType to timestep.Last and records
// the reason on the timestep before returning true.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated environment
type Environment interface {
	Reset() timestep.TimeStep
	Step(action *mat.VecDense) (timestep.TimeStep, bool)
	CurrentTimeStep() timestep.TimeStep
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
