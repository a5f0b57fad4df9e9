package locomotion

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/kiwi-sherbet/loco-mujoco/sim"
)

// RenderFunc is called once per replayed sample with the simulator in
// the sample's state
type RenderFunc func(s sim.Simulator) error

// PlayTrajectoryDemo replays the loaded reference trajectories by
// writing each sample into the simulator in turn. Replay runs for the
// given number of steps, or until the trajectories are exhausted when
// steps is not positive. Falls detected along the way are reported but
// do not stop the replay.
func (b *Base) PlayTrajectoryDemo(steps int, render RenderFunc) error {
	if b.trajectories == nil {
		return fmt.Errorf("playTrajectoryDemo: %w: no trajectory was "+
			"passed to the environment", ErrConfig)
	}

	sample, err := b.trajectories.ResetTrajectory(0, 0)
	if err != nil {
		return fmt.Errorf("playTrajectoryDemo: %v", err)
	}

	total := steps
	if total <= 0 {
		total = b.trajectories.Length() * b.trajectories.NumTrajectories()
	}

	for i := 0; i < total; i++ {
		if err := b.SetSimState(sample); err != nil {
			return fmt.Errorf("playTrajectoryDemo: %v", err)
		}
		b.reportFall(sample)
		if render != nil {
			if err := render(b.simulator); err != nil {
				return fmt.Errorf("playTrajectoryDemo: %v", err)
			}
		}
		sample = b.trajectories.NextSample()
	}
	return nil
}

// PlayTrajectoryDemoFromVelocity replays the reference trajectories
// using only their velocity channels: joint positions are integrated
// forward with the environment's control period instead of being read
// from the samples. Useful for checking that the recorded velocities
// are consistent with the recorded positions.
func (b *Base) PlayTrajectoryDemoFromVelocity(steps int,
	render RenderFunc) error {
	if b.trajectories == nil {
		return fmt.Errorf("playTrajectoryDemoFromVelocity: %w: no "+
			"trajectory was passed to the environment", ErrConfig)
	}

	posIdx := b.trajectories.JointPosIdx()
	velIdx, err := b.jointVelIdx(posIdx)
	if err != nil {
		return fmt.Errorf("playTrajectoryDemoFromVelocity: %v", err)
	}

	sample, err := b.trajectories.ResetTrajectory(0, 0)
	if err != nil {
		return fmt.Errorf("playTrajectoryDemoFromVelocity: %v", err)
	}
	qpos := make([]float64, len(posIdx))
	for i, p := range posIdx {
		qpos[i] = sample[p]
	}

	total := steps
	if total <= 0 {
		total = b.trajectories.Length() * b.trajectories.NumTrajectories()
	}

	dt := b.Dt()
	for i := 0; i < total; i++ {
		if err := b.SetSimState(sample); err != nil {
			return fmt.Errorf("playTrajectoryDemoFromVelocity: %v", err)
		}
		b.reportFall(sample)
		if render != nil {
			if err := render(b.simulator); err != nil {
				return fmt.Errorf("playTrajectoryDemoFromVelocity: %v",
					err)
			}
		}

		sample = append([]float64(nil), b.trajectories.NextSample()...)
		for j := range posIdx {
			qpos[j] += dt * sample[velIdx[j]]
			sample[posIdx[j]] = qpos[j]
		}
	}
	return nil
}

// jointVelIdx resolves the velocity sample index matching each joint
// position index by key naming convention: "q_X" pairs with "dq_X"
func (b *Base) jointVelIdx(posIdx []int) ([]int, error) {
	keys := b.trajectories.Keys()
	byKey := make(map[string]int, len(keys))
	for i, k := range keys {
		byKey[k] = i
	}

	velIdx := make([]int, len(posIdx))
	for i, p := range posIdx {
		posKey := keys[p]
		velKey := "dq_" + strings.TrimPrefix(posKey, "q_")
		j, ok := byKey[velKey]
		if !ok {
			return nil, fmt.Errorf("jointVelIdx: no velocity channel "+
				"%q matching %q", velKey, posKey)
		}
		velIdx[i] = j
	}
	return velIdx, nil
}

// reportFall checks the fall predicate against a replayed sample and
// prints a notice when it fires. Replay states bypass the step
// pipeline, so the observation is assembled directly.
func (b *Base) reportFall(sample []float64) {
	if b.faller == nil {
		return
	}
	obs := append([]float64(nil), sample[2:]...)
	if b.faller.HasFallen(mat.NewVecDense(len(obs), obs)) {
		fmt.Println("Has fallen!")
	}
}
