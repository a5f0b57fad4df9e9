package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion"
	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion/walker"
	"github.com/kiwi-sherbet/loco-mujoco/sim"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

// DemoCommand replays recorded reference trajectories through the
// walker, optionally rendering each replayed state to a PNG frame
func DemoCommand() *cobra.Command {
	var (
		dataPath     string
		steps        int
		fromVelocity bool
		framesDir    string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replay reference trajectories through the walker",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := walker.DefaultConfig()
			c.Horizon = horizon
			c.Seed = seed
			c.RandomStart = false
			c.UseFootForces = false
			c.Traj = &trajectory.Config{Path: resolveDataPath(dataPath)}

			w, err := walker.New(c)
			if err != nil {
				return err
			}

			var render locomotion.RenderFunc
			if framesDir != "" {
				if err := os.MkdirAll(framesDir, os.ModePerm); err != nil {
					return err
				}
				frame := 0
				render = func(s sim.Simulator) error {
					name := filepath.Join(framesDir,
						fmt.Sprintf("frame_%06d.png", frame))
					frame++
					f, err := os.Create(name)
					if err != nil {
						return err
					}
					defer f.Close()
					return s.Render(f)
				}
			}

			if fromVelocity {
				return w.PlayTrajectoryDemoFromVelocity(steps, render)
			}
			return w.PlayTrajectoryDemo(steps, render)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "",
		"Path to the recorded trajectory data")
	cmd.Flags().IntVar(&steps, "steps", 0,
		"Number of samples to replay (0 replays everything)")
	cmd.Flags().BoolVar(&fromVelocity, "from-velocity", false,
		"Integrate joint positions from the recorded velocities")
	cmd.Flags().StringVar(&framesDir, "frames", "",
		"Render each replayed state as a PNG frame into this folder")
	cmd.MarkFlagRequired("data")
	return cmd
}
