package plotting

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

func TestCoordinatePlot(t *testing.T) {
	tr := trajectory.New([]float64{0, 0.1, 0.2, 0.3})
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/elbow/elbow_flexion/value", []float64{0, 0.3, 0.9, math.Pi / 2}))
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/elbow/elbow_flexion/speed", []float64{0, 3, 4, 0}))
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/shoulder1/shoulder_elv/value", []float64{0, 0.5, 1, 1.7}))

	out := filepath.Join(t.TempDir(), "plots", "coordinates.png")
	require.NoError(t, CoordinatePlot(tr, "ConcentricUpwardReach105", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}

func TestAngularSeriesSkipsTranslations(t *testing.T) {
	tr := trajectory.New([]float64{0, 1})
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/ground_thorax/thorax_ty/value", []float64{0.9, 1.1}))
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/ground_thorax/thorax_tilt/value", []float64{0, math.Pi}))
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/ground_thorax/thorax_tx/value", []float64{0, 0}))

	got, err := angularSeries(tr)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "thorax_tilt", got[0].label)
	assert.InDelta(t, 180.0, got[0].points[1].Y, 1e-9)
}

func TestCoordinatePlotRejectsEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.png")
	assert.Error(t, CoordinatePlot(trajectory.New(nil), "empty", out))

	tr := trajectory.New([]float64{0, 1})
	require.NoError(t, tr.AddChannel(trajectory.Controls, "/forceset/DELT1", []float64{0, 1}))
	assert.ErrorContains(t, CoordinatePlot(tr, "controls only", out), "no rotational coordinate")

	tr = trajectory.New([]float64{0, 1})
	require.NoError(t, tr.AddChannel(trajectory.States, "/jointset/ground_thorax/thorax_tz/value", []float64{0, 0.1}))
	assert.ErrorContains(t, CoordinatePlot(tr, "translations only", out), "no rotational coordinate")
}

func TestCoordinateLabel(t *testing.T) {
	assert.Equal(t, "elbow_flexion", CoordinateLabel("/jointset/elbow/elbow_flexion/value"))
	assert.Equal(t, "q", CoordinateLabel("q"))
}
