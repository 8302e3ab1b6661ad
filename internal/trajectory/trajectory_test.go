package trajectory

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	tr, err := ReadFile(filepath.Join("testdata", "guess.sto"))
	require.NoError(t, err)

	assert.Equal(t, "ConcentricUpwardReach105_StartingGuess", tr.Name)
	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3}, tr.Time)
	assert.Equal(t, []string{"/jointset/elbow/elbow_flexion/value", "/jointset/elbow/elbow_flexion/speed"}, tr.StateNames())
	assert.Equal(t, []string{"/elbow_flexion_reserve", "/forceset/DELT1"}, tr.ControlNames())
	assert.Equal(t, []string{"lambda_cid0_p0"}, tr.MultiplierNames())
	assert.Equal(t, []string{"gamma_cid0_p0"}, tr.Names(Slacks))
	assert.Contains(t, tr.Header, HeaderEntry{Key: "inDegrees", Value: "no"})

	speed, err := tr.Channel(States, "/jointset/elbow/elbow_flexion/speed")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(speed[3]))
	assert.True(t, tr.HasNaN())

	_, err = tr.Channel(Controls, "/forceset/TRP1")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"no endheader":   "name\nnum_states=1\n",
		"no labels":      "name\nendheader\n",
		"time not first": "name\nendheader\nx\ttime\n",
		"count mismatch": "name\nnum_states=2\nendheader\ntime\ta\n0\t1\n",
		"short row":      "name\nendheader\ntime\ta\tb\n0\t1\n",
		"bad number":     "name\nendheader\ntime\ta\n0\tabc\n",
		"bad count":      "name\nnum_states=x\nendheader\ntime\ta\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestReadWithoutCounts(t *testing.T) {
	tr, err := Read(strings.NewReader("plain\nendheader\ntime\ta\tb\n0\t1\t2\n1\t3\t4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tr.StateNames())
	assert.Empty(t, tr.ControlNames())
}

func TestWriteReadRoundTrip(t *testing.T) {
	tr, err := ReadFile(filepath.Join("testdata", "guess.sto"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out"+FileExt)
	require.NoError(t, tr.WriteFile(path))
	back, err := ReadFile(path)
	require.NoError(t, err)

	assert.True(t, Equal(tr, back))
	assert.Equal(t, tr.Header, back.Header)
	assert.Equal(t, tr.Name, back.Name)
}

func TestSetters(t *testing.T) {
	tr := New([]float64{0, 1, 2})
	require.NoError(t, tr.AddChannel(Controls, "/forceset/DELT1", []float64{0.1, 0.2, 0.3}))
	require.NoError(t, tr.AddChannel(Multipliers, "lambda", []float64{0, 0, 0}))

	assert.Error(t, tr.AddChannel(Controls, "/forceset/DELT1", []float64{1, 2, 3}), "duplicate")
	assert.ErrorIs(t, tr.AddChannel(Controls, "/forceset/TRP1", []float64{1}), ErrLengthMismatch)

	require.NoError(t, tr.SetControl("/forceset/DELT1", []float64{1, 2, 3}))
	got, err := tr.Channel(Controls, "/forceset/DELT1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	got[0] = 99
	again, _ := tr.Channel(Controls, "/forceset/DELT1")
	assert.Equal(t, 1.0, again[0], "Channel returns a copy")

	assert.ErrorIs(t, tr.SetMultiplier("nope", []float64{0, 0, 0}), ErrUnknownChannel)
	assert.ErrorIs(t, tr.SetTime([]float64{0, 1}), ErrLengthMismatch)
	require.NoError(t, tr.SetTime([]float64{0, 0.5, 1}))
	assert.Equal(t, []float64{0, 0.5, 1}, tr.Time)
}

func TestStatesTable(t *testing.T) {
	src := New([]float64{0, 1})
	require.NoError(t, src.AddChannel(States, "/a/value", []float64{1, 2}))
	require.NoError(t, src.AddChannel(States, "/b/value", []float64{3, 4}))

	dst := New([]float64{0, 1})
	require.NoError(t, dst.AddChannel(States, "/b/value", []float64{0, 0}))
	require.NoError(t, dst.AddChannel(States, "/a/value", []float64{0, 0}))

	require.NoError(t, dst.SetStatesTrajectory(src.ExportStatesTable()))
	a, _ := dst.Channel(States, "/a/value")
	b, _ := dst.Channel(States, "/b/value")
	assert.Equal(t, []float64{1, 2}, a)
	assert.Equal(t, []float64{3, 4}, b)
	assert.Equal(t, []string{"/b/value", "/a/value"}, dst.StateNames(), "target layout is preserved")

	t.Run("extra column", func(t *testing.T) {
		tb := src.ExportStatesTable()
		tb.Labels = append(tb.Labels, "/c/value")
		tb.Columns = append(tb.Columns, []float64{0, 0})
		assert.ErrorIs(t, dst.SetStatesTrajectory(tb), ErrUnknownChannel)
	})
	t.Run("missing column", func(t *testing.T) {
		tb := src.ExportStatesTable()
		tb.Labels, tb.Columns = tb.Labels[:1], tb.Columns[:1]
		assert.ErrorIs(t, dst.SetStatesTrajectory(tb), ErrUnknownChannel)
	})
	t.Run("row count", func(t *testing.T) {
		tb := src.ExportStatesTable()
		tb.Time = []float64{0}
		assert.ErrorIs(t, dst.SetStatesTrajectory(tb), ErrLengthMismatch)
	})
}

func TestResampleWithNumTimes(t *testing.T) {
	tr := New([]float64{0, 0.5, 1})
	require.NoError(t, tr.AddChannel(States, "/q/value", []float64{0, 1, 4}))
	require.NoError(t, tr.AddChannel(Parameters, "mass", []float64{2, 2, 2}))

	require.NoError(t, tr.ResampleWithNumTimes(5))
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, tr.Time)

	q, _ := tr.Channel(States, "/q/value")
	want := []float64{0, 0.5, 1, 2.5, 4}
	assert.Empty(t, cmp.Diff(want, q, cmpopts.EquateApprox(0, 1e-12)))

	mass, _ := tr.Channel(Parameters, "mass")
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, mass)

	assert.Error(t, tr.ResampleWithNumTimes(1))
	assert.Error(t, New([]float64{0}).ResampleWithNumTimes(3))
	assert.Error(t, New([]float64{0, 0}).ResampleWithNumTimes(3))
}

func TestCloneAndEqual(t *testing.T) {
	tr, err := ReadFile(filepath.Join("testdata", "guess.sto"))
	require.NoError(t, err)
	c := tr.Clone()
	assert.True(t, Equal(tr, c), "NaN entries compare bit-identical")

	require.NoError(t, c.SetControl("/forceset/DELT1", []float64{0, 0, 0, 0}))
	assert.False(t, Equal(tr, c))
}

type fuzzTrajectory struct {
	Times  uint8
	States []string
	Values []float64
}

func FuzzWriteRead(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var in fuzzTrajectory
		if err := fuzz.NewConsumer(data).GenerateStruct(&in); err != nil {
			return
		}
		n := int(in.Times%8) + 1
		time := make([]float64, n)
		for i := range time {
			time[i] = float64(i) * 0.01
		}
		tr := New(time)
		tr.Name = "fuzz"
		for i, name := range in.States {
			name = strings.Map(func(r rune) rune {
				if r == '\t' || r == '\n' || r == '\r' || r == ' ' || r == '=' {
					return '_'
				}
				return r
			}, name)
			if name == "" || name == "time" || name == endHeader {
				continue
			}
			values := make([]float64, n)
			for j := range values {
				if len(in.Values) > 0 {
					values[j] = in.Values[(i*n+j)%len(in.Values)]
				}
				if math.IsNaN(values[j]) {
					values[j] = math.NaN()
				}
			}
			_ = tr.AddChannel(States, name, values)
		}

		var buf bytes.Buffer
		require.NoError(t, tr.Write(&buf))
		back, err := Read(&buf)
		require.NoError(t, err)
		if !Equal(tr, back) {
			t.Fatalf("round trip changed the trajectory:\n%s", cmp.Diff(tr.StateNames(), back.StateNames()))
		}
	})
}
