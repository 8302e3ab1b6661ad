// File: cmd/fix_guess.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/guess"
	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/observability"
	"github.com/xkilldash9x/strengthsim/internal/simulation"
)

// newFixGuessCmd creates the `fix-guess` command, which repairs a previous solution
// into a guess for an existing study.
func newFixGuessCmd(newEngine engineFactory) *cobra.Command {
	var studyPath, sourcePath, outputPath string

	cmd := &cobra.Command{
		Use:   "fix-guess --study <file.omoco> --source <file.sto>",
		Short: "Repair a trajectory into a guess for a study",
		Long: `Copies time, states, controls and multipliers from --source onto a random guess
created for --study, writes the result and points the study's guess_file at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runFixGuess(ctx, cfg, observability.GetLogger(), studyPath, sourcePath, outputPath, newEngine, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&studyPath, "study", "", "study file (required)")
	cmd.Flags().StringVar(&sourcePath, "source", "", "trajectory to repair (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "repaired guess (default <study>_repairedGuess.sto)")
	_ = cmd.MarkFlagRequired("study")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// runFixGuess contains the testable logic of the fix-guess command.
func runFixGuess(
	ctx context.Context,
	cfg config.Interface,
	logger *zap.Logger,
	studyPath, sourcePath, outputPath string,
	newEngine engineFactory,
	out io.Writer,
) error {
	if filepath.Ext(studyPath) != moco.StudyExt {
		return fmt.Errorf("study %s is not a %s file", studyPath, moco.StudyExt)
	}
	stem := strings.TrimSuffix(studyPath, moco.StudyExt)
	if outputPath == "" {
		outputPath = stem + "_repairedGuess.sto"
	}

	eng, err := newEngine(cfg.Engine(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	solver := &simulation.EngineSolver{
		Engine:       eng,
		StudyPath:    studyPath,
		RandomPath:   stem + "_randomGuess.sto",
		RepairedPath: outputPath,
	}
	repaired, err := guess.FixGuess(ctx, sourcePath, solver)
	if err != nil {
		return err
	}
	logger.Info("Guess repaired",
		zap.String("study", studyPath),
		zap.String("source", sourcePath),
		zap.String("guess", outputPath),
		zap.Int("times", repaired.NumTimes()))
	fmt.Fprintln(out, outputPath)
	return nil
}
