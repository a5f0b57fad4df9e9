package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/kiwi-sherbet/loco-mujoco/experiment/tracker"
)

// PlotCommand plots episodic returns saved by a rollout as a curve
func PlotCommand() *cobra.Command {
	var returnsPath string

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot episodic returns saved by a rollout",
		RunE: func(cmd *cobra.Command, args []string) error {
			returns := tracker.LoadData(returnsPath)
			if len(returns) == 0 {
				return fmt.Errorf("plot: no episodes recorded in %v",
					returnsPath)
			}

			p := plot.New()
			p.Title.Text = "Episodic return"
			p.X.Label.Text = "Episode"
			p.Y.Label.Text = "Return"

			points := make(plotter.XYs, len(returns))
			for i, r := range returns {
				points[i] = plotter.XY{X: float64(i), Y: r}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				return err
			}
			line.Color = plotutil.Color(0)
			p.Add(line)

			if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
				return err
			}
			out := filepath.Join(saveDir, "returns.png")
			if err := p.Save(8*vg.Inch, 8*vg.Inch, out); err != nil {
				return err
			}
			fmt.Println("saved plot to", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&returnsPath, "returns", "r",
		"results/returns.bin", "Path to the saved episodic returns")
	return cmd
}
