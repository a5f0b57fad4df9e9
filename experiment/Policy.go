package experiment

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/kiwi-sherbet/loco-mujoco/environment"
	ts "github.com/kiwi-sherbet/loco-mujoco/timestep"
)

// Policy selects actions from timesteps. Experiments drive an
// environment with a Policy; learning agents, scripted controllers,
// and random baselines all satisfy this interface.
type Policy interface {
	SelectAction(t ts.TimeStep) *mat.VecDense
}

// UniformPolicy selects actions uniformly at random within the action
// bounds of an environment. Useful as a baseline and for smoke-testing
// environments.
type UniformPolicy struct {
	dists []distuv.Uniform
}

// NewUniformPolicy creates a uniform random policy over the action
// space described by spec
func NewUniformPolicy(spec env.Spec, seed uint64) *UniformPolicy {
	src := rand.NewSource(seed)
	n := spec.Shape.Len()

	dists := make([]distuv.Uniform, n)
	for i := 0; i < n; i++ {
		dists[i] = distuv.Uniform{
			Min: spec.LowerBound.AtVec(i),
			Max: spec.UpperBound.AtVec(i),
			Src: src,
		}
	}
	return &UniformPolicy{dists}
}

// SelectAction draws a random action. The timestep argument is ignored.
func (u *UniformPolicy) SelectAction(ts.TimeStep) *mat.VecDense {
	action := make([]float64, len(u.dists))
	for i, d := range u.dists {
		action[i] = d.Rand()
	}
	return mat.NewVecDense(len(action), action)
}
