// File: internal/plotting/plotting.go
// Description: Renders solved coordinate trajectories for a quick visual check.

package plotting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/xkilldash9x/strengthsim/internal/trajectory"
	"github.com/xkilldash9x/strengthsim/internal/units"
)

const valueSuffix = "/value"

// CoordinatePlot draws every rotational coordinate value state of traj, in degrees, against time and
// writes the figure to out. The image format follows out's extension.
func CoordinatePlot(traj *trajectory.Trajectory, title, out string) error {
	if traj.NumTimes() == 0 {
		return errors.New("trajectory has no samples")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "angle (deg)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	curves, err := angularSeries(traj)
	if err != nil {
		return err
	}
	for n, sr := range curves {
		line, err := plotter.NewLine(sr.points)
		if err != nil {
			return fmt.Errorf("coordinate %s: %w", sr.label, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(n)
		p.Add(line)
		p.Legend.Add(sr.label, line)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("failed to save plot '%s': %w", out, err)
	}
	return nil
}

type series struct {
	label  string
	points plotter.XYs
}

// angularSeries collects the rotational coordinate values of traj in degrees. Translational
// coordinates are in metres and are left out.
func angularSeries(traj *trajectory.Trajectory) ([]series, error) {
	var out []series
	for _, name := range traj.StateNames() {
		if !strings.HasSuffix(name, valueSuffix) {
			continue
		}
		label := CoordinateLabel(name)
		if isTranslational(label) {
			continue
		}
		values, err := traj.Channel(trajectory.States, name)
		if err != nil {
			return nil, err
		}
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = traj.Time[i]
			pts[i].Y = float64(units.Radians(v).Degrees())
		}
		out = append(out, series{label: label, points: pts})
	}
	if len(out) == 0 {
		return nil, errors.New("trajectory has no rotational coordinate value states")
	}
	return out, nil
}

func isTranslational(coordinate string) bool {
	for _, suffix := range []string{"_tx", "_ty", "_tz"} {
		if strings.HasSuffix(coordinate, suffix) {
			return true
		}
	}
	return false
}

// CoordinateLabel shortens /jointset/elbow/elbow_flexion/value to elbow_flexion.
func CoordinateLabel(statePath string) string {
	parts := strings.Split(strings.TrimSuffix(statePath, valueSuffix), "/")
	return parts[len(parts)-1]
}
