package locomotion

import (
	"errors"
	"testing"

	"github.com/kiwi-sherbet/loco-mujoco/sim"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

func TestPlayTrajectoryDemoNoTrajectories(t *testing.T) {
	b, _ := newTestBase(t, nil)

	if err := b.PlayTrajectoryDemo(5, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
	err := b.PlayTrajectoryDemoFromVelocity(5, nil)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
}

func TestPlayTrajectoryDemo(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	rendered := 0
	render := func(s sim.Simulator) error {
		rendered++
		return nil
	}
	if err := b.PlayTrajectoryDemo(5, render); err != nil {
		t.Fatalf("could not replay trajectories: %v", err)
	}
	if rendered != 5 {
		t.Errorf("got %v rendered frames, want 5", rendered)
	}

	// the simulator holds the last replayed sample
	h, _ := b.Simulator().JointHandle("pelvis_tx")
	if got := b.Simulator().JointPos(h); got != 4.0 {
		t.Errorf("got pelvis x %v after replay, want 4", got)
	}
}

func TestPlayTrajectoryDemoWholeStore(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.Traj = &trajectory.Config{Data: testTrajData(2, 10)}
	})

	rendered := 0
	render := func(s sim.Simulator) error {
		rendered++
		return nil
	}
	if err := b.PlayTrajectoryDemo(0, render); err != nil {
		t.Fatalf("could not replay trajectories: %v", err)
	}
	if rendered != 20 {
		t.Errorf("got %v rendered frames, want 20", rendered)
	}
}

func TestPlayTrajectoryDemoFromVelocity(t *testing.T) {
	b, _ := newTestBase(t, func(c *Config) {
		c.Traj = &trajectory.Config{Data: testTrajData(1, 10)}
	})

	if err := b.PlayTrajectoryDemoFromVelocity(5, nil); err != nil {
		t.Fatalf("could not replay from velocities: %v", err)
	}
}
