// File: internal/trajectory/trajectory.go
// Description: In-memory optimal control trajectory. Channels are stored column-major
// and grouped by kind in the order the engine lays them out.

package trajectory

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

var (
	// ErrUnknownChannel is returned when a channel name is not part of the trajectory.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrLengthMismatch is returned when a column does not match the number of times.
	ErrLengthMismatch = errors.New("length mismatch")
)

// Kind identifies a channel group.
type Kind int

const (
	States Kind = iota
	Controls
	Multipliers
	Derivatives
	Slacks
	Parameters
	numKinds
)

var kindNames = [numKinds]string{"states", "controls", "multipliers", "derivatives", "slacks", "parameters"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every channel group in column order.
func Kinds() []Kind {
	return []Kind{States, Controls, Multipliers, Derivatives, Slacks, Parameters}
}

type channels struct {
	names   []string
	columns [][]float64
}

func (c *channels) index(name string) int {
	return slices.Index(c.names, name)
}

// Trajectory is a time-indexed table of states, controls, multipliers, derivatives,
// slacks and parameters. Parameters are constant columns.
type Trajectory struct {
	Name   string
	Header []HeaderEntry
	Time   []float64

	groups [numKinds]channels
}

// HeaderEntry is a key=value line from a trajectory file header.
type HeaderEntry struct {
	Key   string
	Value string
}

// New returns an empty trajectory over the given time vector.
func New(time []float64) *Trajectory {
	return &Trajectory{Time: slices.Clone(time)}
}

// NumTimes returns the number of samples.
func (t *Trajectory) NumTimes() int { return len(t.Time) }

// Names returns the channel names of one kind, in column order.
func (t *Trajectory) Names(kind Kind) []string {
	return slices.Clone(t.groups[kind].names)
}

// StateNames returns the state channel names.
func (t *Trajectory) StateNames() []string { return t.Names(States) }

// ControlNames returns the control channel names.
func (t *Trajectory) ControlNames() []string { return t.Names(Controls) }

// MultiplierNames returns the multiplier channel names.
func (t *Trajectory) MultiplierNames() []string { return t.Names(Multipliers) }

// Channel returns a copy of the named column.
func (t *Trajectory) Channel(kind Kind, name string) ([]float64, error) {
	g := &t.groups[kind]
	i := g.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrUnknownChannel)
	}
	return slices.Clone(g.columns[i]), nil
}

// AddChannel appends a new column.
func (t *Trajectory) AddChannel(kind Kind, name string, values []float64) error {
	g := &t.groups[kind]
	if g.index(name) >= 0 {
		return fmt.Errorf("%s %q already exists", kind, name)
	}
	if len(values) != len(t.Time) {
		return fmt.Errorf("%s %q has %d values for %d times: %w", kind, name, len(values), len(t.Time), ErrLengthMismatch)
	}
	g.names = append(g.names, name)
	g.columns = append(g.columns, slices.Clone(values))
	return nil
}

// SetChannel overwrites an existing column.
func (t *Trajectory) SetChannel(kind Kind, name string, values []float64) error {
	g := &t.groups[kind]
	i := g.index(name)
	if i < 0 {
		return fmt.Errorf("%s %q: %w", kind, name, ErrUnknownChannel)
	}
	if len(values) != len(t.Time) {
		return fmt.Errorf("%s %q has %d values for %d times: %w", kind, name, len(values), len(t.Time), ErrLengthMismatch)
	}
	g.columns[i] = slices.Clone(values)
	return nil
}

// SetControl overwrites the named control.
func (t *Trajectory) SetControl(name string, values []float64) error {
	return t.SetChannel(Controls, name, values)
}

// SetMultiplier overwrites the named multiplier.
func (t *Trajectory) SetMultiplier(name string, values []float64) error {
	return t.SetChannel(Multipliers, name, values)
}

// SetTime replaces the time vector; the sample count must not change.
func (t *Trajectory) SetTime(time []float64) error {
	if len(time) != len(t.Time) {
		return fmt.Errorf("time has %d values, trajectory has %d: %w", len(time), len(t.Time), ErrLengthMismatch)
	}
	t.Time = slices.Clone(time)
	return nil
}

// Table is a plain time series, as exported for the states of a trajectory.
type Table struct {
	Time    []float64
	Labels  []string
	Columns [][]float64
}

// Column returns the column with the given label.
func (tb *Table) Column(label string) ([]float64, bool) {
	i := slices.Index(tb.Labels, label)
	if i < 0 {
		return nil, false
	}
	return tb.Columns[i], true
}

// ExportStatesTable copies the time vector and every state column into a table.
func (t *Trajectory) ExportStatesTable() *Table {
	g := t.groups[States]
	tb := &Table{Time: slices.Clone(t.Time), Labels: slices.Clone(g.names)}
	for _, col := range g.columns {
		tb.Columns = append(tb.Columns, slices.Clone(col))
	}
	return tb
}

// SetStatesTrajectory overwrites every state from table. The table must hold exactly the
// trajectory's states and the same number of samples.
func (t *Trajectory) SetStatesTrajectory(tb *Table) error {
	if len(tb.Time) != len(t.Time) {
		return fmt.Errorf("states table has %d rows, trajectory has %d: %w", len(tb.Time), len(t.Time), ErrLengthMismatch)
	}
	g := &t.groups[States]
	for _, label := range tb.Labels {
		if g.index(label) < 0 {
			return fmt.Errorf("state %q: %w", label, ErrUnknownChannel)
		}
	}
	cols := make([][]float64, len(g.names))
	for i, name := range g.names {
		col, ok := tb.Column(name)
		if !ok {
			return fmt.Errorf("states table has no column for %q: %w", name, ErrUnknownChannel)
		}
		if len(col) != len(t.Time) {
			return fmt.Errorf("state %q: %w", name, ErrLengthMismatch)
		}
		cols[i] = slices.Clone(col)
	}
	g.columns = cols
	return nil
}

// HasNaN reports whether the time vector or any state, control or multiplier is NaN.
func (t *Trajectory) HasNaN() bool {
	if floats.HasNaN(t.Time) {
		return true
	}
	for _, kind := range []Kind{States, Controls, Multipliers} {
		for _, col := range t.groups[kind].columns {
			if floats.HasNaN(col) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *Trajectory) Clone() *Trajectory {
	c := &Trajectory{Name: t.Name, Header: slices.Clone(t.Header), Time: slices.Clone(t.Time)}
	for k := range t.groups {
		c.groups[k].names = slices.Clone(t.groups[k].names)
		for _, col := range t.groups[k].columns {
			c.groups[k].columns = append(c.groups[k].columns, slices.Clone(col))
		}
	}
	return c
}

// ResampleWithNumTimes re-grids the trajectory onto n uniformly spaced times spanning
// the current initial and final time, interpolating every channel linearly.
func (t *Trajectory) ResampleWithNumTimes(n int) error {
	if n < 2 {
		return fmt.Errorf("cannot resample to %d times", n)
	}
	if len(t.Time) < 2 {
		return fmt.Errorf("cannot resample a trajectory with %d times", len(t.Time))
	}
	for i := 1; i < len(t.Time); i++ {
		if !(t.Time[i] > t.Time[i-1]) {
			return fmt.Errorf("time is not strictly increasing at row %d", i)
		}
	}

	grid := floats.Span(make([]float64, n), t.Time[0], t.Time[len(t.Time)-1])
	for k := range t.groups {
		for i, col := range t.groups[k].columns {
			resampled, err := resample(t.Time, col, grid)
			if err != nil {
				return fmt.Errorf("%s %q: %w", Kind(k), t.groups[k].names[i], err)
			}
			t.groups[k].columns[i] = resampled
		}
	}
	t.Time = grid
	return nil
}

func resample(xs, ys, grid []float64) ([]float64, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// Equal reports whether two trajectories have identical layout and bit-identical values.
func Equal(a, b *Trajectory) bool {
	if !equalBits(a.Time, b.Time) {
		return false
	}
	for k := range a.groups {
		if !slices.Equal(a.groups[k].names, b.groups[k].names) {
			return false
		}
		for i := range a.groups[k].columns {
			if !equalBits(a.groups[k].columns[i], b.groups[k].columns[i]) {
				return false
			}
		}
	}
	return true
}

func equalBits(a, b []float64) bool {
	return slices.EqualFunc(a, b, func(x, y float64) bool {
		return math.Float64bits(x) == math.Float64bits(y)
	})
}
