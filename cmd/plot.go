// File: cmd/plot.go
package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/strengthsim/internal/plotting"
	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

func newPlotCmd() *cobra.Command {
	var outputPath, title string

	cmd := &cobra.Command{
		Use:   "plot <solution.sto>",
		Short: "Plot the coordinate trajectories of a solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(args[0], outputPath, title, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "image file; the extension picks the format (default <solution>_coordinates.png)")
	cmd.Flags().StringVar(&title, "title", "", "figure title (default the trajectory name)")
	return cmd
}

func runPlot(solutionPath, outputPath, title string, out io.Writer) error {
	traj, err := trajectory.ReadFile(solutionPath)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(solutionPath, filepath.Ext(solutionPath)) + "_coordinates.png"
	}
	if title == "" {
		title = traj.Name
	}
	if err := plotting.CoordinatePlot(traj, title, outputPath); err != nil {
		return fmt.Errorf("failed to plot %s: %w", solutionPath, err)
	}
	fmt.Fprintln(out, outputPath)
	return nil
}
