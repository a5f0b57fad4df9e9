// Package commands wires the command line interface of the walker
// environment: trajectory replay, random rollouts, dataset export, and
// learning-curve plots.
package commands

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	seed    uint64
	horizon int
	saveDir string
)

// envOr returns the value of the environment variable key, or fallback
// when it is unset or empty
func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// resolveDataPath resolves a relative trajectory-data path against the
// LOCO_ASSETS directory when one is configured
func resolveDataPath(path string) string {
	assets := os.Getenv("LOCO_ASSETS")
	if assets == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(assets, path)
}

// GetRootCommand builds the command tree
func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "loco",
		Short: "Planar locomotion environments driven by reference trajectories",
	}

	// environment variables may override defaults; a missing .env
	// file is not an error
	godotenv.Load()

	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 42,
		"Seed for random number generation")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 1000,
		"Maximum number of steps per episode")
	rootCommand.PersistentFlags().StringVarP(&saveDir, "save", "s",
		envOr("LOCO_OUT", "results"),
		"Save result data in the specified folder")

	rootCommand.AddCommand(DemoCommand())
	rootCommand.AddCommand(RolloutCommand())
	rootCommand.AddCommand(DatasetCommand())
	rootCommand.AddCommand(PlotCommand())
	return rootCommand
}
