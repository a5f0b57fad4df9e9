package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion/walker"
	"github.com/kiwi-sherbet/loco-mujoco/experiment"
	"github.com/kiwi-sherbet/loco-mujoco/experiment/tracker"
	"github.com/kiwi-sherbet/loco-mujoco/experiment/trackers"
	"github.com/kiwi-sherbet/loco-mujoco/reward"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

// RolloutCommand runs a uniform random policy on the walker for a
// number of steps and saves the episodic returns and episode lengths
func RolloutCommand() *cobra.Command {
	var (
		dataPath       string
		maxSteps       uint
		targetVelocity float64
	)

	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Run a random policy on the walker and save the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := walker.DefaultConfig()
			c.Horizon = horizon
			c.Seed = seed
			if dataPath != "" {
				c.Traj = &trajectory.Config{Path: resolveDataPath(dataPath)}
			} else {
				c.RandomStart = false
			}
			c.RewardType = reward.TargetVelocityType
			c.RewardParams = reward.Params{TargetVelocity: targetVelocity}

			w, err := walker.New(c)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
				return err
			}

			// trackers are registered with the environment so they
			// record its timesteps even when the experiment drives a
			// wrapper around it
			policy := experiment.NewUniformPolicy(w.ActionSpec(), seed)
			exp := experiment.NewOnline(w, policy, maxSteps,
				[]tracker.Tracker{
					tracker.Register(trackers.NewReturn(filepath.Join(
						saveDir, "returns.bin")), w),
					tracker.Register(trackers.NewEpisodeLength(
						filepath.Join(saveDir, "lengths.bin")), w),
				}...)

			exp.Run()
			exp.Save()
			fmt.Println("saved results to", saveDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "",
		"Path to recorded trajectory data for episode initialization")
	cmd.Flags().UintVar(&maxSteps, "steps", 10000,
		"Total number of environment steps to run")
	cmd.Flags().Float64Var(&targetVelocity, "target-velocity", 1.25,
		"Forward velocity tracked by the reward")
	return cmd
}
