// File: cmd/generate.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/observability"
	"github.com/xkilldash9x/strengthsim/internal/variants"
)

// newGenerateCmd creates the `generate` command, which writes a strength variant of the
// baseline model for every configured muscle group and scale factor.
func newGenerateCmd() *cobra.Command {
	var baseline, outputDir string
	var factors []float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write muscle strength variants of the baseline model",
		Long: `Scales the max isometric force of each configured muscle group by each scale factor
and writes one model per pair, named <group>_strength<percent>.osim.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("factors") {
				cfg.SetGenerateScaleFactors(factors)
			}
			return runGenerate(ctx, cfg, observability.GetLogger(), baseline, outputDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&baseline, "baseline", "", "baseline model (default <root>/ModelFiles/<paths.baseline_model>)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for the variants (default <root>/ModelFiles)")
	cmd.Flags().Float64SliceVar(&factors, "factors", nil, "scale factors, overriding generate.scale_factors")
	return cmd
}

// runGenerate contains the testable logic of the generate command.
func runGenerate(_ context.Context, cfg config.Interface, logger *zap.Logger, baseline, outputDir string, out io.Writer) error {
	paths := cfg.Paths()
	modelDir, err := paths.Resolve(paths.ModelDir)
	if err != nil {
		return err
	}
	if baseline == "" {
		baseline = filepath.Join(modelDir, paths.BaselineModel)
	}
	if outputDir == "" {
		outputDir = modelDir
	}

	gc := cfg.Generate()
	groups := make([]variants.Group, 0, len(gc.MuscleGroups))
	for _, g := range gc.MuscleGroups {
		groups = append(groups, variants.Group(g))
	}

	outputs, err := variants.NewGenerator(logger, outputDir).Generate(baseline, groups, gc.ScaleFactors)
	for _, o := range outputs {
		fmt.Fprintln(out, o.Path)
	}
	if err != nil {
		return fmt.Errorf("variant generation stopped after %d models: %w", len(outputs), err)
	}
	return nil
}
