// File: internal/variants/generator.go
// Description: Builds strength-variant models from a baseline by scaling the maximum
// isometric force of groups of muscles.

package variants

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/strengthsim/internal/osim"
)

// Group is a set of muscles that are scaled together as one unit.
type Group []string

// Label joins the group's muscle names with underscores, e.g. "INFSP_TMIN".
func (g Group) Label() string {
	return strings.Join(g, "_")
}

// VariantName returns the model name for the group scaled by factor, e.g. "DELT1_strength80".
func VariantName(g Group, factor float64) string {
	return fmt.Sprintf("%s_strength%d", g.Label(), Percent(factor))
}

// Percent converts a scale factor to the integer percentage used in file names. The
// product is truncated, so 0.29 names as 28; existing result sets use these names.
func Percent(factor float64) int {
	return int(factor * 100)
}

// Output records one generated model.
type Output struct {
	Label  string
	Factor float64
	Name   string
	Path   string
}

// Generator writes strength variants of a baseline model.
type Generator struct {
	logger    *zap.Logger
	outputDir string
}

// NewGenerator creates a generator that writes into outputDir.
func NewGenerator(logger *zap.Logger, outputDir string) *Generator {
	return &Generator{logger: logger.Named("variants"), outputDir: outputDir}
}

// Generate loads the baseline at baselinePath and writes one model per (group, factor)
// pair. Every variant starts from an unmodified copy of the baseline. The first unknown
// muscle aborts the batch; variants already written are left on disk.
func (g *Generator) Generate(baselinePath string, groups []Group, factors []float64) ([]Output, error) {
	if baselinePath == "" {
		return nil, errors.New("a baseline model path is required")
	}
	if len(groups) == 0 {
		return nil, errors.New("at least one muscle group is required")
	}
	if len(factors) == 0 {
		return nil, errors.New("at least one scale factor is required")
	}
	for _, f := range factors {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("scale factor must be a positive finite number, got %v", f)
		}
	}
	for i, grp := range groups {
		if len(grp) == 0 {
			return nil, fmt.Errorf("muscle group %d is empty", i)
		}
	}

	baseline, err := osim.Load(baselinePath)
	if err != nil {
		return nil, err
	}
	g.logger.Info("Generating strength variants",
		zap.String("baseline", baselinePath),
		zap.Int("groups", len(groups)),
		zap.Float64s("factors", factors))

	outputs := make([]Output, 0, len(groups)*len(factors))
	for _, grp := range groups {
		for _, factor := range factors {
			out, err := g.generateOne(baseline.Clone(), grp, factor)
			if err != nil {
				return outputs, fmt.Errorf("variant %s: %w", VariantName(grp, factor), err)
			}
			outputs = append(outputs, out)
		}
	}
	g.logger.Info("Strength variants written", zap.Int("count", len(outputs)), zap.String("dir", g.outputDir))
	return outputs, nil
}

func (g *Generator) generateOne(model *osim.Model, grp Group, factor float64) (Output, error) {
	for _, muscle := range grp {
		// Lookups are unguarded: a missing muscle is a configuration error.
		strength, err := model.MaxIsometricForce(muscle)
		if err != nil {
			g.logger.Error("Muscle not in baseline model",
				zap.String("muscle", muscle),
				zap.Strings("available", model.Muscles()))
			return Output{}, err
		}
		if err := model.SetMaxIsometricForce(muscle, strength*factor); err != nil {
			return Output{}, err
		}
	}

	name := VariantName(grp, factor)
	model.SetName(name)
	if err := model.FinalizeConnections(); err != nil {
		return Output{}, err
	}
	path := filepath.Join(g.outputDir, name+osim.FileExt)
	if err := model.Save(path); err != nil {
		return Output{}, err
	}
	g.logger.Debug("Variant written", zap.String("name", name), zap.String("path", path))
	return Output{Label: grp.Label(), Factor: factor, Name: name, Path: path}, nil
}
