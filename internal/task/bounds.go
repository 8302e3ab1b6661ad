// File: internal/task/bounds.go
// Description: Task bound tables and the state bounds composed from them.

package task

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/osim"
	"github.com/xkilldash9x/strengthsim/internal/units"
)

// Coordinates bounded by the composer.
const (
	ShoulderElevation = "shoulder_elv"
	ShoulderRotation  = "shoulder_rot"
	ElevationAngle    = "elv_angle"
	ElbowFlexion      = "elbow_flexion"
	ProSup            = "pro_sup"

	// proSupLimitSource is the coordinate whose range limits pro_sup.
	proSupLimitSource = ElbowFlexion
)

// Pattern bounds applied to every task.
const (
	SpeedPattern      = "/jointset/.*/speed"
	ActivationPattern = "/forceset/.*/activation"
)

var boundColumns = []string{"Min", "Max", "ConcentricLowerBound", "ConcentricUpperBound"}

// BoundRow is one task's limits for a coordinate, in degrees.
type BoundRow struct {
	Min                  units.Degrees
	Max                  units.Degrees
	ConcentricLowerBound units.Degrees
	ConcentricUpperBound units.Degrees
}

// BoundTable maps a task's bound row label to its limits.
type BoundTable struct {
	Name string
	rows map[string]BoundRow
}

// LoadBoundTable reads a CSV bound table from path.
func LoadBoundTable(path string) (*BoundTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bound table '%s': %w", path, err)
	}
	defer f.Close()
	t, err := ReadBoundTable(f, path)
	if err != nil {
		return nil, fmt.Errorf("bound table '%s': %w", path, err)
	}
	return t, nil
}

// ReadBoundTable parses a CSV bound table. The task label column is the one headed
// "Task", or the first column when none is.
func ReadBoundTable(r io.Reader, name string) (*BoundTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty table")
	}

	header := records[0]
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	taskCol, ok := col["Task"]
	if !ok {
		taskCol = 0
	}
	idx := make([]int, len(boundColumns))
	for i, c := range boundColumns {
		j, ok := col[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		idx[i] = j
	}

	t := &BoundTable{Name: name, rows: make(map[string]BoundRow, len(records)-1)}
	for line, rec := range records[1:] {
		vals := make([]float64, len(idx))
		for i, j := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", line+2, boundColumns[i], err)
			}
			vals[i] = v
		}
		t.rows[strings.TrimSpace(rec[taskCol])] = BoundRow{
			Min:                  units.Degrees(vals[0]),
			Max:                  units.Degrees(vals[1]),
			ConcentricLowerBound: units.Degrees(vals[2]),
			ConcentricUpperBound: units.Degrees(vals[3]),
		}
	}
	return t, nil
}

// Row returns the limits for a bound row label.
func (t *BoundTable) Row(label string) (BoundRow, error) {
	row, ok := t.rows[label]
	if !ok {
		return BoundRow{}, fmt.Errorf("bound table %s has no row %q", t.Name, label)
	}
	return row, nil
}

// AddTaskBounds installs the task's coordinate, speed and activation bounds on problem.
// elv, rot and ang hold shoulder elevation, shoulder rotation and elevation plane limits.
func AddTaskBounds(t Task, problem *moco.Problem, model *osim.Model, elv, rot, ang *BoundTable) error {
	if t == nil || problem == nil || model == nil || elv == nil || rot == nil || ang == nil {
		return fmt.Errorf("%w: AddTaskBounds needs a task, a problem, a model and three bound tables", ErrMissingArgument)
	}

	tables := []struct {
		coordinate string
		table      *BoundTable
	}{
		{ShoulderElevation, elv},
		{ShoulderRotation, rot},
		{ElevationAngle, ang},
	}
	for _, tb := range tables {
		if err := addTableBounds(t, problem, model, tb.coordinate, tb.table); err != nil {
			return err
		}
	}

	elbow, err := model.Coordinate(ElbowFlexion)
	if err != nil {
		return err
	}
	elbowMax := elbow.RangeMax
	if t.Reach() {
		elbowMax = units.Rad(90)
	}
	problem.SetStateInfo(elbow.StatePath(), moco.NewBounds(elbow.RangeMin, elbowMax), moco.Fixed(0), moco.Bounds{})

	proSup, err := model.Coordinate(ProSup)
	if err != nil {
		return err
	}
	limits, err := model.Coordinate(proSupLimitSource)
	if err != nil {
		return err
	}
	proSupMin := limits.RangeMin
	if t.Reach() {
		// Stops the forearm over-supinating during the reach.
		proSupMin = units.Rad(-10)
	}
	problem.SetStateInfo(proSup.StatePath(), moco.NewBounds(proSupMin, limits.RangeMax), moco.Fixed(0), moco.Bounds{})

	// Start and end at rest.
	problem.SetStateInfoPattern(SpeedPattern, moco.NewBounds(-50, 50), moco.Fixed(0), moco.Fixed(0))
	problem.SetStateInfoPattern(ActivationPattern, moco.NewBounds(0.01, 1), moco.Fixed(0.01), moco.Bounds{})
	return nil
}

func addTableBounds(t Task, problem *moco.Problem, model *osim.Model, coordinate string, table *BoundTable) error {
	row, err := table.Row(t.BoundRow())
	if err != nil {
		return err
	}
	c, err := model.Coordinate(coordinate)
	if err != nil {
		return err
	}
	problem.SetStateInfo(c.StatePath(),
		moco.NewBounds(row.Min.Radians().Float(), row.Max.Radians().Float()),
		moco.Fixed(0),
		moco.NewBounds(row.ConcentricLowerBound.Radians().Float(), row.ConcentricUpperBound.Radians().Float()))
	return nil
}
