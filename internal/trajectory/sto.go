// File: internal/trajectory/sto.go
// Description: Reader and writer for the engine's tab-delimited storage (.sto) format.

package trajectory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FileExt is the extension of trajectory files.
const FileExt = ".sto"

const endHeader = "endheader"

// countKeys maps each channel kind to the header key that sizes it.
var countKeys = [numKinds]string{"num_states", "num_controls", "num_multipliers", "num_derivatives", "num_slacks", "num_parameters"}

// ReadFile loads a trajectory from path.
func ReadFile(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory file '%s': %w", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("trajectory file '%s': %w", path, err)
	}
	return t, nil
}

// Read parses a .sto document. When the header carries no num_* keys every column is
// treated as a state.
func Read(r io.Reader) (*Trajectory, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	t := &Trajectory{}
	var counts [numKinds]int
	sawCounts := false
	line := 0
	for {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, errors.New("missing endheader")
		}
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == endHeader {
			break
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			if line == 1 {
				t.Name = strings.TrimSpace(text)
			}
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if k := countKind(key); k >= 0 {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, key, value)
			}
			counts[k] = n
			sawCounts = true
			continue
		}
		if key == "nRows" || key == "nColumns" {
			continue
		}
		t.Header = append(t.Header, HeaderEntry{Key: key, Value: value})
	}

	if !sc.Scan() {
		return nil, errors.New("missing column labels")
	}
	line++
	labels := strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t")
	if len(labels) == 0 || strings.TrimSpace(labels[0]) != "time" {
		return nil, fmt.Errorf("line %d: first column must be time", line)
	}
	labels = labels[1:]

	total := 0
	for _, n := range counts {
		total += n
	}
	if !sawCounts {
		counts[States] = len(labels)
	} else if total != len(labels) {
		return nil, fmt.Errorf("header declares %d channels, found %d columns", total, len(labels))
	}

	rows := [][]float64{}
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != len(labels)+1 {
			return nil, fmt.Errorf("line %d: expected %d values, got %d", line, len(labels)+1, len(fields))
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := parseValue(f)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	t.Time = make([]float64, len(rows))
	for i, row := range rows {
		t.Time[i] = row[0]
	}
	col := 1
	for k := range counts {
		for j := 0; j < counts[k]; j++ {
			values := make([]float64, len(rows))
			for i, row := range rows {
				values[i] = row[col]
			}
			if err := t.AddChannel(Kind(k), labels[col-1], values); err != nil {
				return nil, err
			}
			col++
		}
	}
	return t, nil
}

func countKind(key string) Kind {
	for k, name := range countKeys {
		if key == name {
			return Kind(k)
		}
	}
	return -1
}

func parseValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan", "-nan", "+nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteFile stores the trajectory at path.
func (t *Trajectory) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trajectory file '%s': %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write trajectory file '%s': %w", path, err)
	}
	return f.Close()
}

// Write serialises the trajectory in .sto form. Values use the shortest representation
// that reads back bit-identical.
func (t *Trajectory) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	name := t.Name
	if name == "" {
		name = "trajectory"
	}
	fmt.Fprintln(bw, name)
	for _, h := range t.Header {
		fmt.Fprintf(bw, "%s=%s\n", h.Key, h.Value)
	}
	ncols := 1
	for k := range t.groups {
		fmt.Fprintf(bw, "%s=%d\n", countKeys[k], len(t.groups[k].names))
		ncols += len(t.groups[k].names)
	}
	fmt.Fprintf(bw, "nRows=%d\n", len(t.Time))
	fmt.Fprintf(bw, "nColumns=%d\n", ncols)
	fmt.Fprintln(bw, endHeader)

	bw.WriteString("time")
	for k := range t.groups {
		for _, n := range t.groups[k].names {
			bw.WriteByte('\t')
			bw.WriteString(n)
		}
	}
	bw.WriteByte('\n')

	for i, tm := range t.Time {
		bw.WriteString(strconv.FormatFloat(tm, 'g', -1, 64))
		for k := range t.groups {
			for _, col := range t.groups[k].columns {
				bw.WriteByte('\t')
				bw.WriteString(strconv.FormatFloat(col[i], 'g', -1, 64))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
