package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiwi-sherbet/loco-mujoco/environment/locomotion/walker"
	"github.com/kiwi-sherbet/loco-mujoco/trajectory"
)

// DatasetCommand converts recorded trajectory data into a transition
// dataset of (state, next state, absorbing) triples
func DatasetCommand() *cobra.Command {
	var (
		dataPath   string
		outPath    string
		ignoreKeys []string
	)

	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Export a transition dataset from recorded trajectories",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := walker.DefaultConfig()
			c.Horizon = horizon
			c.Seed = seed
			c.UseFootForces = false
			c.Traj = &trajectory.Config{Path: resolveDataPath(dataPath)}

			w, err := walker.New(c)
			if err != nil {
				return err
			}

			ds, err := w.CreateDataset(ignoreKeys)
			if err != nil {
				return err
			}
			if err := ds.Save(outPath); err != nil {
				return err
			}

			rows, cols := ds.States.Dims()
			fmt.Printf("saved %v transitions of dimension %v to %v\n",
				rows, cols, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "",
		"Path to the recorded trajectory data")
	cmd.Flags().StringVarP(&outPath, "out", "o", "dataset.bin",
		"Path of the exported dataset")
	cmd.Flags().StringSliceVar(&ignoreKeys, "ignore", nil,
		"Observation keys to drop from the dataset")
	cmd.MarkFlagRequired("data")
	return cmd
}
