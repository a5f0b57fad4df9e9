package locomotion

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// KinematicObsMask returns the indices of the kinematic components
// within the agent-facing observation. Appended channels such as
// ground forces are excluded.
func (b *Base) KinematicObsMask() []int {
	return append([]int(nil), b.kinematicMask...)
}

// ObsToKinematics extracts the kinematic components from a batch of
// agent-facing observations, one observation per row
func (b *Base) ObsToKinematics(obs *mat.Dense) *mat.Dense {
	rows, _ := obs.Dims()
	out := mat.NewDense(rows, len(b.kinematicMask), nil)
	for i := 0; i < rows; i++ {
		for j, idx := range b.kinematicMask {
			out.Set(i, j, obs.At(i, idx))
		}
	}
	return out
}

// ObsIdx returns the agent-facing observation indices a state key
// occupies. The raw indices shift down by two because the x and y
// position are stripped from observations.
func (b *Base) ObsIdx(key string) ([]int, error) {
	raw, err := b.helper.ObsIdx(key)
	if err != nil {
		return nil, fmt.Errorf("obsIdx: %v", err)
	}
	idx := make([]int, len(raw))
	for i, r := range raw {
		if r < 2 {
			return nil, fmt.Errorf("obsIdx: key %q names a stripped "+
				"observation component", key)
		}
		idx[i] = r - 2
	}
	return idx, nil
}

// FromObs extracts the components a state key occupies from an
// agent-facing observation
func (b *Base) FromObs(obs *mat.VecDense, key string) (*mat.VecDense,
	error) {
	idx, err := b.ObsIdx(key)
	if err != nil {
		return nil, fmt.Errorf("fromObs: %v", err)
	}
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = obs.AtVec(j)
	}
	return mat.NewVecDense(len(out), out), nil
}

// JointPos returns the current position of a named joint
func (b *Base) JointPos(name string) (float64, error) {
	h, err := b.simulator.JointHandle(name)
	if err != nil {
		return 0, fmt.Errorf("jointPos: %v", err)
	}
	return b.simulator.JointPos(h), nil
}

// JointVel returns the current velocity of a named joint
func (b *Base) JointVel(name string) (float64, error) {
	h, err := b.simulator.JointHandle(name)
	if err != nil {
		return 0, fmt.Errorf("jointVel: %v", err)
	}
	return b.simulator.JointVel(h), nil
}

// LenQposQvel counts the position-valued and velocity-valued entries
// of the observation specification, identified by their key prefixes
func (b *Base) LenQposQvel() (nQpos, nQvel int) {
	for _, key := range b.helper.Keys() {
		switch {
		case strings.HasPrefix(key, "dq_"):
			nQvel++
		case strings.HasPrefix(key, "q_"):
			nQpos++
		}
	}
	return nQpos, nQvel
}
